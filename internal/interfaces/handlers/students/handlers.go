package students

import (
	"strings"

	ledgersvc "bprd-credits/internal/application/ledger"
	"bprd-credits/internal/interfaces/handlers/errmap"
	"bprd-credits/internal/middleware"
	"bprd-credits/internal/pkg/response"
	"bprd-credits/internal/pkg/umbrella"
	"bprd-credits/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service   *ledgersvc.Service
	Umbrellas *umbrella.Table
}

type provisionBody struct {
	StudentID string  `json:"student_id" validate:"required,notblank,max=64"`
	Name      string  `json:"name" validate:"required,notblank"`
	Email     *string `json:"email" validate:"omitempty,email"`
}

// Provision POST /api/v1/students: 201 when created, 200 with the existing record otherwise.
func (h *Handlers) Provision(c *fiber.Ctx) error {
	var body provisionBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if fields := validation.Struct(body); fields != nil {
		return errmap.Validation(c, fields)
	}
	st, created, err := h.Service.Provision(c.UserContext(), ledgersvc.ProvisionInput{
		StudentID: body.StudentID,
		Name:      body.Name,
		Email:     body.Email,
	})
	if err != nil {
		return errmap.Respond(c, err)
	}
	if created {
		return response.SuccessCreated(c, "Student provisioned", st, nil)
	}
	return response.Success(c, "Student already provisioned", st, nil)
}

// Ledger GET /api/v1/students/:id/ledger
func (h *Handlers) Ledger(c *fiber.Ctx) error {
	studentID := c.Params("id")
	if !canAct(c, studentID) {
		return errmap.Forbidden(c)
	}
	l, err := h.Service.Ledger(c.UserContext(), studentID)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Ledger fetched successfully", l, nil)
}

// History GET /api/v1/students/:id/history?umbrella=
func (h *Handlers) History(c *fiber.Ctx) error {
	studentID := c.Params("id")
	if !canAct(c, studentID) {
		return errmap.Forbidden(c)
	}
	key := ""
	if name := strings.TrimSpace(c.Query("umbrella")); name != "" {
		var err error
		if key, err = h.canonical(name); err != nil {
			return errmap.Respond(c, err)
		}
	}
	entries, err := h.Service.History(c.UserContext(), nil, studentID, key)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "History fetched successfully", entries, response.Count(len(entries)))
}

func (h *Handlers) canonical(name string) (string, error) {
	if h.Umbrellas != nil {
		return h.Umbrellas.Canonicalize(name)
	}
	return umbrella.Canonicalize(name)
}

func canAct(c *fiber.Ctx, studentID string) bool {
	actor, ok := middleware.GetActor(c)
	return ok && actor.CanActFor(studentID)
}
