package user

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/predicta-labs/predicta_api/internal/logging"
	"github.com/predicta-labs/predicta_api/internal/middleware"
	"github.com/predicta-labs/predicta_api/internal/validation"
)

func setupHandlerApp(t *testing.T) (*fiber.App, *Service, User) {
	t.Helper()
	svc, _ := newTestService()
	me, err := svc.CreateUser(context.Background(), CreateInput{Address: "0xME", Username: "me_user"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := NewHandler(svc)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logging.Discard()),
		JSONDecoder:  validation.UnmarshalStrict,
	})
	guard := func(c *fiber.Ctx) error {
		if c.Get("X-Test-User") == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}
		c.Locals(LocalsKey, &User{ID: c.Get("X-Test-User")})
		return c.Next()
	}
	app.Get("/users/me", guard, h.Me)
	app.Get("/users/username/check", h.CheckUsername)
	app.Put("/users/username", guard, h.UpdateUsername)
	return app, svc, me
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, payload
}

func TestMeReturnsProfileWithoutVerifyToken(t *testing.T) {
	app, _, me := setupHandlerApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/users/me", me.ID, "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d: %v", status, body)
	}
	if body["id"] != me.ID || body["username"] != "me_user" || body["address"] != "0xME" {
		t.Fatalf("unexpected profile %v", body)
	}
	if _, leaked := body["emailVerifyToken"]; leaked {
		t.Fatalf("verification code must not be serialized")
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/users/me", "ghost", "")
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for vanished user, got %d", status)
	}
}

func TestCheckUsername(t *testing.T) {
	app, _, _ := setupHandlerApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/users/username/check?username=me_user", "", "")
	if status != fiber.StatusOK || body["isAvailable"] != false {
		t.Fatalf("expected taken, got %d %v", status, body)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/users/username/check?username=fresh_name", "", "")
	if status != fiber.StatusOK || body["isAvailable"] != true || body["username"] != "fresh_name" {
		t.Fatalf("expected available, got %d %v", status, body)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/users/username/check", "", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing username, got %d", status)
	}
}

func TestUpdateUsernameHandler(t *testing.T) {
	app, svc, me := setupHandlerApp(t)
	if _, err := svc.CreateUser(context.Background(), CreateInput{Address: "0xOTHER", Username: "other_user"}); err != nil {
		t.Fatalf("seed other: %v", err)
	}

	status, _ := doJSON(t, app, fiber.MethodPut, "/users/username", me.ID, `{"username":"other_user"}`)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}

	status, body := doJSON(t, app, fiber.MethodPut, "/users/username", me.ID, `{"username":"x!"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if msgs, ok := body["message"].([]any); !ok || len(msgs) == 0 {
		t.Fatalf("expected violation list, got %v", body)
	}

	status, body = doJSON(t, app, fiber.MethodPut, "/users/username", me.ID, `{"username":"ok_name","extra":1}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected unknown property to be rejected, got %d %v", status, body)
	}

	status, body = doJSON(t, app, fiber.MethodPut, "/users/username", me.ID, `{"username":" new_name "}`)
	if status != fiber.StatusOK || body["username"] != "new_name" {
		t.Fatalf("expected rename, got %d %v", status, body)
	}

	status, _ = doJSON(t, app, fiber.MethodPut, "/users/username", "", `{"username":"whatever"}`)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %d", status)
	}
}
