package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/estudioia/timeline-render/internal/service"
)

type HealthHandler struct {
	service *service.RenderService
	redis   *redis.Client
}

// NewHealthHandler creates the health handler. redisClient may be nil.
func NewHealthHandler(svc *service.RenderService, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		service: svc,
		redis:   redisClient,
	}
}

// Check handles GET /health. A Redis outage degrades but does not fail the
// check since jobs keep running from memory.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	redisStatus := "disabled"
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		defer cancel()
		redisStatus = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unavailable"
		}
	}

	status := "ok"
	if redisStatus == "unavailable" {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status": status,
		"redis":  redisStatus,
		"jobs":   h.service.Stats(),
	})
}
