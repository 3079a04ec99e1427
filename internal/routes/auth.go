package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/predicta-labs/predicta_api/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints. bearer guards the routes
// that act on the signed-in user.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, bearer fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/signin", h.Signin)
	group.Post("/refresh", h.Refresh)
	group.Post("/connect-wallet", bearer, h.ConnectWallet)
	group.Post("/verify-email", h.VerifyEmail)
	group.Get("/username-suggest", h.UsernameSuggest)
}
