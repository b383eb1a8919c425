package httpx

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"tracker-api/internal/httpx/kit"
	"tracker-api/internal/redisx"
)

// HealthHandler reports liveness.
//
//	@Summary		Health
//	@Description	Liveness probe
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
func HealthHandler(c *fiber.Ctx) error {
	return kit.OK(c, fiber.Map{"status": "ok"})
}

// ReadyHandler reports whether the database and, when configured, Redis answer.
//
//	@Summary		Readiness
//	@Description	Checks database and redis connectivity
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		503	{object}	map[string]interface{}
//	@Router			/ready [get]
func ReadyHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		checks := fiber.Map{"db": "ok"}
		ready := true
		if err := d.Store.Ping(ctx); err != nil {
			httpxLogger.Sugar().Warnf("readiness: db: %v", err)
			checks["db"], ready = "down", false
		}
		if d.Redis != nil {
			checks["redis"] = "ok"
			if err := redisx.Ping(ctx, d.Redis); err != nil {
				httpxLogger.Sugar().Warnf("readiness: redis: %v", err)
				checks["redis"], ready = "down", false
			}
		}
		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "not ready", "code": "E_UNAVAILABLE", "message": "not ready",
				"details": checks, "request_id": kit.RequestID(c),
			})
		}
		return kit.OK(c, checks)
	}
}
