package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/estudioia/timeline-render/internal/logger"
	"github.com/estudioia/timeline-render/internal/middleware"
	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/scheduler"
	"github.com/estudioia/timeline-render/internal/service"
	"github.com/estudioia/timeline-render/internal/timeline"
	"github.com/estudioia/timeline-render/pkg/response"
)

const sseKeepAlive = 15 * time.Second

type RenderHandler struct {
	service   *service.RenderService
	validator *validator.Validate
	log       *slog.Logger
}

func NewRenderHandler(svc *service.RenderService, v *validator.Validate, log *slog.Logger) *RenderHandler {
	return &RenderHandler{
		service:   svc,
		validator: v,
		log:       log.With(slog.String("component", "render_handler")),
	}
}

// Create handles POST /api/render/jobs
func (h *RenderHandler) Create(c *fiber.Ctx) error {
	var req model.RenderStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartRender(c.UserContext(), &req)
	if err != nil {
		return h.renderError(c, err)
	}

	logger.FromContext(c.UserContext(), h.log).Info("render requested",
		slog.String("job_id", result.JobID),
		slog.String("user_id", middleware.GetUserID(c)),
	)
	return response.Accepted(c, result)
}

// List handles GET /api/render/jobs
func (h *RenderHandler) List(c *fiber.Ctx) error {
	var statuses []model.JobStatus
	if raw := c.Query("status"); raw != "" {
		status := model.JobStatus(raw)
		if !status.IsValid() {
			return response.ValidationError(c, "Invalid status filter", fiber.Map{"status": raw})
		}
		statuses = append(statuses, status)
	}

	return response.OK(c, h.service.ListJobs(statuses...))
}

// Get handles GET /api/render/jobs/:jobId
func (h *RenderHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetStatus(c.UserContext(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, job)
}

// Cancel handles POST /api/render/jobs/:jobId/cancel
func (h *RenderHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.CancelRender(c.UserContext(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Delete handles DELETE /api/render/jobs/:jobId
func (h *RenderHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.service.RemoveJob(c.UserContext(), jobID); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// Events handles GET /api/render/jobs/:jobId/events as a Server-Sent
// Events stream that ends after the terminal event.
func (h *RenderHandler) Events(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	events, unsubscribe, ok := h.service.Subscribe(jobID)
	if !ok {
		// another instance owns it, or it was purged: replay the snapshot
		job, err := h.service.GetStatus(c.UserContext(), jobID)
		if err != nil {
			if errors.Is(err, service.ErrJobNotFound) {
				return response.NotFound(c, "Job not found")
			}
			return response.ServiceError(c, err.Error())
		}
		if !job.Status.IsTerminal() {
			return response.Conflict(c, "Job is handled by another instance")
		}
		replay := make(chan model.ProgressEvent, 1)
		replay <- job.TerminalEvent()
		close(replay)
		events, unsubscribe = replay, func() {}
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")

	log := h.log.With(slog.String("job_id", jobID))
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		keepAlive := time.NewTicker(sseKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					log.Debug("event stream closed", slog.Any("error", err))
					return
				}
			case <-keepAlive.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					log.Debug("event stream closed", slog.Any("error", err))
					return
				}
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, ev model.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return w.Flush()
}

// renderError maps job creation failures to responses
func (h *RenderHandler) renderError(c *fiber.Ctx, err error) error {
	var verr *timeline.ValidationError
	switch {
	case errors.As(err, &verr):
		return response.ValidationError(c, "Invalid timeline", verr.Problems)
	case errors.Is(err, scheduler.ErrInvalidSettings):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, scheduler.ErrClosed):
		return response.Unavailable(c, "Render service is shutting down")
	default:
		logger.FromContext(c.UserContext(), h.log).Error("failed to start render", slog.Any("error", err))
		return response.ServiceError(c, err.Error())
	}
}
