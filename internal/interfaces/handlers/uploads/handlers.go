package uploads

import (
	"errors"

	uploadsvc "bprd-credits/internal/application/uploads"
	"bprd-credits/internal/interfaces/handlers/errmap"
	"bprd-credits/internal/middleware"
	"bprd-credits/internal/pkg/response"
	"bprd-credits/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers bundles upload handlers with the service.
type Handlers struct {
	Service *uploadsvc.Service
}

type uploadRequest struct {
	StudentID string `json:"student_id"`
	FileName  string `json:"file_name" validate:"required,notblank,max=200"`
}

// CreditDocument POST /api/v1/uploads/credit-document: signs an upload of a
// course transcript; the returned path is sent later as document_path.
func (h *Handlers) CreditDocument(c *fiber.Ctx) error {
	var req uploadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "file_name is required", fiber.StatusBadRequest, nil)
	}
	if fields := validation.Struct(req); fields != nil {
		return errmap.Validation(c, fields)
	}
	actor, _ := middleware.GetActor(c)
	if req.StudentID == "" {
		req.StudentID = actor.StudentID
	}
	if req.StudentID == "" {
		return errmap.Validation(c, map[string]string{"student_id": "student_id is a required field"})
	}
	if !actor.CanActFor(req.StudentID) {
		return errmap.Forbidden(c)
	}

	res, err := h.Service.CreditDocumentURL(c.UserContext(), req.StudentID, req.FileName)
	if err != nil {
		switch {
		case errors.Is(err, uploadsvc.ErrFileName):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, uploadsvc.ErrStorageNotConfigured):
			return response.Error(c, err.Error(), fiber.StatusServiceUnavailable, nil)
		}
		log.Ctx(c.UserContext()).Error().Err(err).Msg("upload: failed to generate signed URL")
		return response.Error(c, "Failed to generate upload URL", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Upload URL generated", res, nil)
}
