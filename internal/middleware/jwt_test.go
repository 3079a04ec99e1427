package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"Bearer":           "",
		"Basic abc":        "",
		"Bearer abc.def":   "abc.def",
		"bearer   tok  ":   "tok",
		"BEARER upper-tok": "upper-tok",
	}
	for in, want := range cases {
		if got := BearerToken(in); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	resolve := func(_ context.Context, token string) (any, bool) {
		if token == "good" {
			return "user-1", true
		}
		return nil, false
	}
	app := fiber.New()
	app.Get("/me", BearerAuth(resolve, "principal"), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("principal").(string))
	})

	for _, tc := range []struct {
		header string
		status int
	}{
		{"", fiber.StatusUnauthorized},
		{"Bearer bad", fiber.StatusUnauthorized},
		{"Bearer good", fiber.StatusOK},
	} {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set(fiber.HeaderAuthorization, tc.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("header %q: expected %d got %d", tc.header, tc.status, resp.StatusCode)
		}
	}
}
