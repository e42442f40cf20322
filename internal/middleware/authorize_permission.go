package middleware

import (
	"bprd-credits/internal/constants"
	roles "bprd-credits/internal/pkg/constants"
	"bprd-credits/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthorizePermission checks the session user's role against constants.PermissionRoles.
// Unknown role or unconfigured permission -> 500; role not allowed -> 403.
func AuthorizePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := GetActor(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		if !roles.IsValidRole(actor.Role) {
			return response.Error(c, "Authorization error", fiber.StatusInternalServerError, nil)
		}
		allowed, ok := constants.PermissionRoles[permission]
		if !ok || len(allowed) == 0 {
			return response.Error(c, "Permission configuration error", fiber.StatusInternalServerError, nil)
		}
		if !constants.AllowedRole(permission, actor.Role) {
			return response.Forbidden(c, "User is Forbidden from performing this action")
		}
		return c.Next()
	}
}
