package pendingcredits

import (
	"time"

	intakesvc "bprd-credits/internal/application/intake"
	"bprd-credits/internal/domain"
	"bprd-credits/internal/interfaces/handlers/errmap"
	"bprd-credits/internal/middleware"
	"bprd-credits/internal/pkg/response"
	"bprd-credits/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *intakesvc.Service
}

type submitBody struct {
	StudentID      string     `json:"student_id"`
	Organization   string     `json:"organization" validate:"required,notblank"`
	Discipline     string     `json:"discipline" validate:"required,notblank"`
	TheoryHours    float64    `json:"theory_hours" validate:"gte=0"`
	PracticalHours float64    `json:"practical_hours" validate:"gte=0"`
	DocumentPath   *string    `json:"document_path" validate:"omitempty,max=512"`
	CompletedAt    *time.Time `json:"completed_at"`
}

type declineBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Submit POST /api/v1/pending-credits
func (h *Handlers) Submit(c *fiber.Ctx) error {
	actor, _ := middleware.GetActor(c)
	var body submitBody
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

	req, err := h.Service.Submit(c.UserContext(), intakesvc.SubmitInput{
		StudentID:      body.StudentID,
		Organization:   body.Organization,
		Discipline:     body.Discipline,
		TheoryHours:    body.TheoryHours,
		PracticalHours: body.PracticalHours,
		DocumentPath:   body.DocumentPath,
		CompletedAt:    body.CompletedAt,
	})
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.SuccessCreated(c, "Pending credit submitted", req, nil)
}

// ApprovePOC POST /api/v1/pending-credits/:id/approve/poc
func (h *Handlers) ApprovePOC(c *fiber.Ctx) error {
	return h.approve(c, domain.RolePOC)
}

// ApproveAdmin POST /api/v1/pending-credits/:id/approve/admin
func (h *Handlers) ApproveAdmin(c *fiber.Ctx) error {
	return h.approve(c, domain.RoleAdmin)
}

func (h *Handlers) approve(c *fiber.Ctx, role domain.Role) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for request id", fiber.StatusBadRequest, nil)
	}
	actor, _ := middleware.GetActor(c)
	result, err := h.Service.Approve(c.UserContext(), id, role, actor.UserID)
	if err != nil {
		return errmap.Respond(c, err)
	}
	msg := "Pending credit approved"
	if result.Entry != nil {
		msg = "Pending credit approved and credited"
	}
	return response.Success(c, msg, result, nil)
}

// DeclinePOC POST /api/v1/pending-credits/:id/decline/poc
func (h *Handlers) DeclinePOC(c *fiber.Ctx) error {
	return h.decline(c, domain.RolePOC)
}

// DeclineAdmin POST /api/v1/pending-credits/:id/decline/admin
func (h *Handlers) DeclineAdmin(c *fiber.Ctx) error {
	return h.decline(c, domain.RoleAdmin)
}

func (h *Handlers) decline(c *fiber.Ctx, role domain.Role) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for request id", fiber.StatusBadRequest, nil)
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
	req, err := h.Service.Decline(c.UserContext(), id, role, actor.UserID, body.Reason)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Pending credit declined", req, nil)
}

// Apply POST /api/v1/pending-credits/:id/apply: retries crediting an approved request.
func (h *Handlers) Apply(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for request id", fiber.StatusBadRequest, nil)
	}
	entry, err := h.Service.Apply(c.UserContext(), id)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Pending credit applied", entry, nil)
}

// Get GET /api/v1/pending-credits/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for request id", fiber.StatusBadRequest, nil)
	}
	req, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return errmap.Respond(c, err)
	}
	if actor, _ := middleware.GetActor(c); !actor.CanActFor(req.StudentID) {
		return errmap.Forbidden(c)
	}
	return response.Success(c, "Pending credit fetched successfully", req, nil)
}

// ListByStudent GET /api/v1/pending-credits/student/:id
func (h *Handlers) ListByStudent(c *fiber.Ctx) error {
	studentID := c.Params("id")
	if actor, _ := middleware.GetActor(c); !actor.CanActFor(studentID) {
		return errmap.Forbidden(c)
	}
	list, err := h.Service.ListByStudent(c.UserContext(), studentID)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Pending credits fetched successfully", list, response.Count(len(list)))
}

// PocQueue GET /api/v1/pending-credits/poc-queue
func (h *Handlers) PocQueue(c *fiber.Ctx) error {
	list, err := h.Service.PocQueue(c.UserContext())
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "POC queue fetched successfully", list, response.Count(len(list)))
}

// AdminQueue GET /api/v1/pending-credits/admin-queue
func (h *Handlers) AdminQueue(c *fiber.Ctx) error {
	list, err := h.Service.AdminQueue(c.UserContext())
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Admin queue fetched successfully", list, response.Count(len(list)))
}
