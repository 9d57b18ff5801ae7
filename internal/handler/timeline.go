package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/scheduler"
	"github.com/estudioia/timeline-render/internal/service"
	"github.com/estudioia/timeline-render/internal/timeline"
	"github.com/estudioia/timeline-render/pkg/response"
)

type TimelineHandler struct {
	service   *service.RenderService
	validator *validator.Validate
}

func NewTimelineHandler(svc *service.RenderService, v *validator.Validate) *TimelineHandler {
	return &TimelineHandler{
		service:   svc,
		validator: v,
	}
}

// Convert handles POST /api/timeline/convert
func (h *TimelineHandler) Convert(c *fiber.Ctx) error {
	var req model.TimelineConvertRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.ConvertTimeline(&req.Project, req.Settings)
	if err != nil {
		var verr *timeline.ValidationError
		if errors.As(err, &verr) {
			return response.ValidationError(c, "Invalid timeline", verr.Problems)
		}
		if errors.Is(err, scheduler.ErrInvalidSettings) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
