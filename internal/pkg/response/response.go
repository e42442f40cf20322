// Package response writes the JSON envelope shared by every endpoint:
// {"status":"success","message","data","metadata"} on success and
// {"status":"error","error":{"message","statusCode","details"}} on failure.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Meta is the metadata object attached to success bodies.
type Meta map[string]interface{}

type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Count is the metadata for list responses.
func Count(n int) Meta {
	return Meta{"count": n}
}

func orEmpty(v interface{}) interface{} {
	if v == nil {
		return Meta{}
	}
	return v
}

func success(c *fiber.Ctx, code int, message string, data, metadata interface{}) error {
	return c.Status(code).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: orEmpty(metadata),
	})
}

// Success writes 200.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return success(c, fiber.StatusOK, message, data, metadata)
}

// SuccessCreated writes 201.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return success(c, fiber.StatusCreated, message, data, metadata)
}

// Error writes statusCode with the error envelope.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    orEmpty(details),
		},
	})
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusForbidden, nil)
}
