package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/estudioia/timeline-render/internal/service"
	"github.com/estudioia/timeline-render/pkg/response"
)

type ExportHandler struct {
	service *service.ExportService
}

func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Download handles GET /api/render/jobs/:jobId/export
func (h *ExportHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Export(c.UserContext(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobNotCompleted):
			return response.Conflict(c, "Job not completed yet")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, result)
}
