package middleware

import (
	roles "bprd-credits/internal/pkg/constants"
	"bprd-credits/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// Actor is the authenticated caller as read from the session user.
type Actor struct {
	UserID    string
	Role      string
	StudentID string
}

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := GetActor(c); !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// GetActor reads user_id, role and student_id from the session user.
// ok is false when there is no user or it has no user_id.
func GetActor(c *fiber.Ctx) (Actor, bool) {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return Actor{}, false
	}
	a := Actor{}
	a.UserID, _ = m["user_id"].(string)
	a.Role, _ = m["role"].(string)
	a.StudentID, _ = m["student_id"].(string)
	return a, a.UserID != ""
}

// CanActFor reports whether the actor may read or act on studentID.
// Students are limited to their own record; staff roles are not.
func (a Actor) CanActFor(studentID string) bool {
	if roles.IsStaff(a.Role) {
		return true
	}
	return a.Role == roles.Student && a.StudentID != "" && a.StudentID == studentID
}
