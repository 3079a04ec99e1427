package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PrincipalResolver maps a bearer token to the authenticated principal.
// It must not error: any failure is reported as ok=false.
type PrincipalResolver func(ctx context.Context, token string) (principal any, ok bool)

// BearerAuth rejects requests without a resolvable bearer token and stores the
// resolved principal under localsKey.
func BearerAuth(resolve PrincipalResolver, localsKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
		}
		principal, ok := resolve(c.UserContext(), token)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
		}
		c.Locals(localsKey, principal)
		return c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}
