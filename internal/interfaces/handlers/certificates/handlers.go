package certificates

import (
	certsvc "bprd-credits/internal/application/certificates"
	"bprd-credits/internal/domain"
	"bprd-credits/internal/interfaces/handlers/errmap"
	"bprd-credits/internal/middleware"
	"bprd-credits/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *certsvc.Service
}

// Get GET /api/v1/certificates/:id: accepts a certificate id or a certificate number.
func (h *Handlers) Get(c *fiber.Ctx) error {
	ref := c.Params("id")
	var (
		cert *domain.Certificate
		err  error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		cert, err = h.Service.Get(c.UserContext(), id)
	} else {
		cert, err = h.Service.GetByNumber(c.UserContext(), ref)
	}
	if err != nil {
		return errmap.Respond(c, err)
	}
	if actor, _ := middleware.GetActor(c); !actor.CanActFor(cert.StudentID) {
		return errmap.Forbidden(c)
	}
	return response.Success(c, "Certificate fetched successfully", cert, nil)
}

// ListByStudent GET /api/v1/certificates/student/:id
func (h *Handlers) ListByStudent(c *fiber.Ctx) error {
	studentID := c.Params("id")
	if actor, _ := middleware.GetActor(c); !actor.CanActFor(studentID) {
		return errmap.Forbidden(c)
	}
	list, err := h.Service.ListByStudent(c.UserContext(), studentID)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Certificates fetched successfully", list, response.Count(len(list)))
}
