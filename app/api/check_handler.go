package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type CheckHandler struct {
	db Pinger
}

// NewCheckHandler takes an optional database to probe on every health check.
func NewCheckHandler(db Pinger) *CheckHandler {
	return &CheckHandler{db: db}
}

func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"result": "database unavailable"})
		}
	}
	return c.JSON(fiber.Map{"result": "ok"})
}
