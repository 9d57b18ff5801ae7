package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/estudioia/timeline-render/internal/service"
	ws "github.com/estudioia/timeline-render/internal/websocket"
	"github.com/estudioia/timeline-render/pkg/response"
)

type WebSocketHandler struct {
	service *service.RenderService
	hub     *ws.Hub
	log     *slog.Logger
}

func NewWebSocketHandler(svc *service.RenderService, hub *ws.Hub, log *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		service: svc,
		hub:     hub,
		log:     log.With(slog.String("component", "websocket_handler")),
	}
}

// Upgrade rejects plain HTTP requests and unknown jobs before the handshake
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := h.service.GetStatus(c.UserContext(), c.Params("jobId")); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return c.Next()
}

// Connect handles GET /ws/jobs/:jobId
func (h *WebSocketHandler) Connect() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		job, err := h.service.GetStatus(ctx, jobID)
		cancel()
		if err == nil && job.Status.IsTerminal() {
			// nothing left to stream
			data, err := ws.EncodeEvent(job.TerminalEvent())
			if err != nil {
				h.log.Error("failed to encode terminal message", slog.String("job_id", jobID), slog.Any("error", err))
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		h.hub.HandleConnection(c, jobID)
	})
}
