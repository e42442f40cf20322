package claims

import (
	"errors"

	claimsvc "bprd-credits/internal/application/claims"
	"bprd-credits/internal/domain"
	"bprd-credits/internal/interfaces/handlers/errmap"
	"bprd-credits/internal/middleware"
	"bprd-credits/internal/pkg/response"
	"bprd-credits/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *claimsvc.Service
}

type createBody struct {
	StudentID     string `json:"student_id"`
	Umbrella      string `json:"umbrella" validate:"required,notblank"`
	Qualification string `json:"qualification" validate:"required,notblank"`
}

type declineBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Create POST /api/v1/claims: student_id defaults to the caller's own record.
func (h *Handlers) Create(c *fiber.Ctx) error {
	actor, _ := middleware.GetActor(c)
	var body createBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if fields := validation.Struct(body); fields != nil {
		return errmap.Validation(c, fields)
	}
	if body.StudentID == "" {
		body.StudentID = actor.StudentID
	}
	if body.StudentID == "" {
		return errmap.Validation(c, map[string]string{"student_id": "student_id is a required field"})
	}
	if !actor.CanActFor(body.StudentID) {
		return errmap.Forbidden(c)
	}

	claim, err := h.Service.Create(c.UserContext(), claimsvc.CreateInput{
		StudentID:     body.StudentID,
		Umbrella:      body.Umbrella,
		Qualification: body.Qualification,
		RequestedBy:   actor.UserID,
	})
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.SuccessCreated(c, "Claim created successfully", claim, nil)
}

// ApprovePOC POST /api/v1/claims/:id/approve/poc
func (h *Handlers) ApprovePOC(c *fiber.Ctx) error {
	return h.approve(c, domain.RolePOC)
}

// ApproveAdmin POST /api/v1/claims/:id/approve/admin
func (h *Handlers) ApproveAdmin(c *fiber.Ctx) error {
	return h.approve(c, domain.RoleAdmin)
}

func (h *Handlers) approve(c *fiber.Ctx, role domain.Role) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for claim id", fiber.StatusBadRequest, nil)
	}
	actor, _ := middleware.GetActor(c)
	result, err := h.Service.Approve(c.UserContext(), id, role, actor.UserID)
	if err != nil {
		if result != nil && errors.Is(err, domain.ErrInsufficientCreditsAtFinalize) {
			return response.Error(c, err.Error(), fiber.StatusUnprocessableEntity, fiber.Map{"claim": result.Claim})
		}
		return errmap.Respond(c, err)
	}
	msg := "Claim approved"
	if result.Certificate != nil {
		msg = "Claim approved and certificate issued"
	}
	return response.Success(c, msg, result, nil)
}

// DeclinePOC POST /api/v1/claims/:id/decline/poc
func (h *Handlers) DeclinePOC(c *fiber.Ctx) error {
	return h.decline(c, domain.RolePOC)
}

// DeclineAdmin POST /api/v1/claims/:id/decline/admin
func (h *Handlers) DeclineAdmin(c *fiber.Ctx) error {
	return h.decline(c, domain.RoleAdmin)
}

func (h *Handlers) decline(c *fiber.Ctx, role domain.Role) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for claim id", fiber.StatusBadRequest, nil)
	}
	var body declineBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	if fields := validation.Struct(body); fields != nil {
		return errmap.Validation(c, fields)
	}
	actor, _ := middleware.GetActor(c)
	claim, err := h.Service.Decline(c.UserContext(), id, role, actor.UserID, body.Reason)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Claim declined", claim, nil)
}

// Finalize POST /api/v1/claims/:id/finalize: safe to repeat; returns the one certificate.
func (h *Handlers) Finalize(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for claim id", fiber.StatusBadRequest, nil)
	}
	cert, err := h.Service.Finalize(c.UserContext(), id)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Certificate issued", cert, nil)
}

// Get GET /api/v1/claims/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for claim id", fiber.StatusBadRequest, nil)
	}
	claim, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return errmap.Respond(c, err)
	}
	if actor, _ := middleware.GetActor(c); !actor.CanActFor(claim.StudentID) {
		return errmap.Forbidden(c)
	}
	return response.Success(c, "Claim fetched successfully", claim, nil)
}

// ListByStudent GET /api/v1/claims/student/:id
func (h *Handlers) ListByStudent(c *fiber.Ctx) error {
	studentID := c.Params("id")
	if actor, _ := middleware.GetActor(c); !actor.CanActFor(studentID) {
		return errmap.Forbidden(c)
	}
	list, err := h.Service.ListByStudent(c.UserContext(), studentID)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Claims fetched successfully", list, response.Count(len(list)))
}

// PocQueue GET /api/v1/claims/poc-queue
func (h *Handlers) PocQueue(c *fiber.Ctx) error {
	list, err := h.Service.PocQueue(c.UserContext())
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "POC queue fetched successfully", list, response.Count(len(list)))
}

// AdminQueue GET /api/v1/claims/admin-queue
func (h *Handlers) AdminQueue(c *fiber.Ctx) error {
	list, err := h.Service.AdminQueue(c.UserContext())
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Admin queue fetched successfully", list, response.Count(len(list)))
}
