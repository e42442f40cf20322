package eligibility

import (
	eligsvc "bprd-credits/internal/application/eligibility"
	"bprd-credits/internal/domain"
	"bprd-credits/internal/interfaces/handlers/errmap"
	"bprd-credits/internal/middleware"
	"bprd-credits/internal/pkg/response"
	"bprd-credits/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *eligsvc.Service
}

type query struct {
	StudentID     string `query:"student_id" json:"student_id"`
	Umbrella      string `query:"umbrella" json:"umbrella" validate:"required,notblank"`
	Qualification string `query:"qualification" json:"qualification"`
}

// Check GET /api/v1/eligibility?student_id=&umbrella=&qualification=
// Without qualification every configured qualification is evaluated.
func (h *Handlers) Check(c *fiber.Ctx) error {
	var q query
	if err := c.QueryParser(&q); err != nil {
		return response.Error(c, "Invalid query parameters", fiber.StatusBadRequest, nil)
	}
	if fields := validation.Struct(q); fields != nil {
		return errmap.Validation(c, fields)
	}
	actor, _ := middleware.GetActor(c)
	if q.StudentID == "" {
		q.StudentID = actor.StudentID
	}
	if q.StudentID == "" {
		return errmap.Validation(c, map[string]string{"student_id": "student_id is a required field"})
	}
	if !actor.CanActFor(q.StudentID) {
		return errmap.Forbidden(c)
	}

	key, err := h.Service.Canonical(q.Umbrella)
	if err != nil {
		return errmap.Respond(c, err)
	}

	if q.Qualification == "" {
		results := make([]*eligsvc.Result, 0, len(domain.Qualifications))
		for _, qual := range domain.Qualifications {
			r, err := h.Service.Evaluate(c.UserContext(), nil, q.StudentID, key, qual)
			if err != nil {
				return errmap.Respond(c, err)
			}
			results = append(results, r)
		}
		return response.Success(c, "Eligibility evaluated", results, nil)
	}

	qual, err := domain.ParseQualification(q.Qualification)
	if err != nil {
		return errmap.Respond(c, err)
	}
	r, err := h.Service.Evaluate(c.UserContext(), nil, q.StudentID, key, qual)
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Eligibility evaluated", r, nil)
}

// Catalog GET /api/v1/eligibility/catalog lists umbrellas and thresholds.
func (h *Handlers) Catalog(c *fiber.Ctx) error {
	cat, err := h.Service.Catalog()
	if err != nil {
		return errmap.Respond(c, err)
	}
	return response.Success(c, "Catalog fetched successfully", cat, nil)
}
