package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/predicta-labs/predicta_api/internal/user"
)

// RegisterUserRoutes wires profile endpoints.
func RegisterUserRoutes(r fiber.Router, h *user.Handler, bearer fiber.Handler) {
	group := r.Group("/users")
	group.Get("/me", bearer, h.Me)
	group.Get("/username/check", h.CheckUsername)
	group.Put("/username", bearer, h.UpdateUsername)
}
