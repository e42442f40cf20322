// Package errmap turns service errors into HTTP responses.
package errmap

import (
	"errors"

	"bprd-credits/internal/domain"
	"bprd-credits/internal/middleware"
	"bprd-credits/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type entry struct {
	err    error
	status int
}

// statusMap is checked in order with errors.Is. ErrInsufficientCreditsAtFinalize
// is listed before ErrInsufficientCredits so its own message is reported.
var statusMap = []entry{
	{domain.ErrNotFound, fiber.StatusNotFound},
	{domain.ErrInsufficientCreditsAtFinalize, fiber.StatusUnprocessableEntity},
	{domain.ErrInsufficientCredits, fiber.StatusUnprocessableEntity},
	{domain.ErrDuplicateClaim, fiber.StatusConflict},
	{domain.ErrAlreadyApproved, fiber.StatusConflict},
	{domain.ErrSameApprover, fiber.StatusConflict},
	{domain.ErrAlreadyFinalized, fiber.StatusConflict},
	{domain.ErrInvalidTransition, fiber.StatusConflict},
	{domain.ErrUnknownUmbrella, fiber.StatusBadRequest},
	{domain.ErrUnknownQualification, fiber.StatusBadRequest},
	{domain.ErrInvalidHours, fiber.StatusBadRequest},
	{domain.ErrInvalidAmount, fiber.StatusBadRequest},
	{domain.ErrInvalidRole, fiber.StatusBadRequest},
}

// Status returns the HTTP status for err, or 500 if it is not a known domain error.
func Status(err error) int {
	for _, e := range statusMap {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

// Respond writes err in the standard error envelope. Unknown errors are logged
// and reported as "Internal Server Error".
func Respond(c *fiber.Ctx, err error) error {
	status := Status(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("request failed")
		return response.Error(c, "Internal Server Error", status, nil)
	}
	return response.Error(c, err.Error(), status, nil)
}

// Validation writes 400 with per-field messages.
func Validation(c *fiber.Ctx, fields map[string]string) error {
	return response.Error(c, "Validation failed", fiber.StatusBadRequest, fields)
}

// Forbidden is returned when a student targets another student's record.
func Forbidden(c *fiber.Ctx) error {
	return response.Forbidden(c, "User is Forbidden from performing this action")
}
