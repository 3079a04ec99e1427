package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestRequestIDAssignsAndEchoes(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, _ = app.Test(req)
	if got := resp.Header.Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected caller id to be echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	resp, _ = app.Test(req)
	if got := resp.Header.Get(requestIDHeader); len(got) > maxRequestIDLen {
		t.Fatalf("oversized id must be replaced")
	}
}

func TestAccessLogUsesErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(RequestID(), AccessLog(logger))
	app.Get("/missing", func(*fiber.Ctx) error { return fiber.NewError(http.StatusNotFound, "User not found") })
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	for _, path := range []string{"/missing", "/ok"} {
		if _, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil)); err != nil {
			t.Fatalf("app.Test: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two access lines, got %q", buf.String())
	}
	want := []struct {
		level  string
		status float64
	}{{"WARN", 404}, {"INFO", 204}}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if entry["level"] != want[i].level || entry["status"] != want[i].status || entry["request_id"] == nil {
			t.Fatalf("unexpected entry %v", entry)
		}
	}
}
