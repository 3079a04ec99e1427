package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds a readiness endpoint reporting each configured backend.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	checks := map[string]func(context.Context) error{}
	if d.DB != nil {
		checks["postgres"] = d.DB.Ping
	}
	if d.SQLite != nil {
		checks["sqlite"] = d.SQLite.PingContext
	}
	if d.Cache != nil {
		checks["redis"] = func(ctx context.Context) error { return d.Cache.Ping(ctx).Err() }
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := fiber.Map{}
		if len(checks) == 0 {
			report["store"] = "memory"
		}
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    report,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
