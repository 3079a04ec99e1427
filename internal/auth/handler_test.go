package auth

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
	"github.com/predicta-labs/predicta_api/internal/user"
	"github.com/predicta-labs/predicta_api/internal/validation"
)

func setupAuthApp(t *testing.T) (*fiber.App, *fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.svc, logging.Discard())

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logging.Discard()),
		JSONDecoder:  validation.UnmarshalStrict,
	})
	resolve := func(ctx context.Context, token string) (any, bool) {
		u, ok := f.sessions.Resolve(ctx, token)
		return u, ok
	}
	app.Post("/auth/signin", h.Signin)
	app.Post("/auth/refresh", h.Refresh)
	app.Post("/auth/connect-wallet", middleware.BearerAuth(resolve, user.LocalsKey), h.ConnectWallet)
	app.Post("/auth/verify-email", h.VerifyEmail)
	app.Get("/auth/username-suggest", h.UsernameSuggest)
	return app, f
}

func call(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
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

func TestSigninWalletReturnsTokens(t *testing.T) {
	app, _ := setupAuthApp(t)

	status, body := call(t, app, fiber.MethodPost, "/auth/signin", "", `{"loginMethod":"metamask","address":"`+walletA+`","username":" alice "}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d: %v", status, body)
	}
	if body["access_token"] == "" || body["refresh_token"] == nil || body["username"] != "alice" {
		t.Fatalf("unexpected body %v", body)
	}

	status, body = call(t, app, fiber.MethodPost, "/auth/signin", "", `{"loginMethod":"metamask","address":"`+walletB+`","username":"alice"}`)
	if status != fiber.StatusConflict || body["message"] != "Username already taken" {
		t.Fatalf("expected 409 got %d: %v", status, body)
	}
}

func TestSigninEmailNeedsVerification(t *testing.T) {
	app, f := setupAuthApp(t)

	status, body := call(t, app, fiber.MethodPost, "/auth/signin", "", `{"loginMethod":"email","email":"jane@example.com"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d: %v", status, body)
	}
	if body["needsEmailVerification"] != true || body["email"] != "jane@example.com" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, leaked := body["access_token"]; leaked {
		t.Fatalf("tokens must not be issued before verification")
	}

	code := f.notifier.last().Code
	status, body = call(t, app, fiber.MethodPost, "/auth/verify-email", "", `{"token":"`+code+`"}`)
	if status != fiber.StatusOK || body["isEmailVerified"] != true || body["message"] != "Email successfully verified" {
		t.Fatalf("verify: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPost, "/auth/verify-email", "", `{"token":"`+code+`"}`)
	if status != fiber.StatusNotFound || body["message"] != "Verification code not found or expired" {
		t.Fatalf("expected 404 got %d: %v", status, body)
	}
}

func TestVerifyEmailRejectsNonDigitTokens(t *testing.T) {
	app, _ := setupAuthApp(t)

	for _, token := range []string{"+12345", "-12345", "1.2345", "12a456"} {
		status, body := call(t, app, fiber.MethodPost, "/auth/verify-email", "", `{"token":"`+token+`"}`)
		if status != fiber.StatusBadRequest {
			t.Fatalf("token %q: expected 400 got %d: %v", token, status, body)
		}
	}
}

func TestSigninRejections(t *testing.T) {
	app, _ := setupAuthApp(t)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"missing identity", `{"loginMethod":"metamask"}`, fiber.StatusUnauthorized},
		{"unknown method", `{"loginMethod":"carrier_pigeon","address":"` + walletA + `"}`, fiber.StatusBadRequest},
		{"bad address", `{"loginMethod":"metamask","address":"0x12"}`, fiber.StatusBadRequest},
		{"unknown field", `{"loginMethod":"metamask","address":"` + walletA + `","role":"admin"}`, fiber.StatusBadRequest},
		{"bad username", `{"loginMethod":"metamask","address":"` + walletA + `","username":"a b"}`, fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		status, body := call(t, app, fiber.MethodPost, "/auth/signin", "", tc.body)
		if status != tc.status {
			t.Fatalf("%s: expected %d got %d: %v", tc.name, tc.status, status, body)
		}
	}

	status, body := call(t, app, fiber.MethodPost, "/auth/signin", "", `{"address":"`+walletA+`"}`)
	if status != fiber.StatusUnauthorized || body["message"] != "Login method is required" {
		t.Fatalf("expected 401 with reason, got %d: %v", status, body)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	app, f := setupAuthApp(t)
	res, err := f.svc.Signin(context.Background(), SigninRequest{LoginMethod: "metamask", Address: walletA})
	if err != nil {
		t.Fatalf("signin: %v", err)
	}

	status, body := call(t, app, fiber.MethodPost, "/auth/refresh", "", `{"refresh_token":"`+res.Tokens.RefreshToken+`"}`)
	if status != fiber.StatusCreated || body["access_token"] == nil {
		t.Fatalf("refresh: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPost, "/auth/refresh", "", `{"refresh_token":"`+res.Tokens.AccessToken+`"}`)
	if status != fiber.StatusUnauthorized || body["message"] != "Invalid refresh token" {
		t.Fatalf("expected 401 got %d: %v", status, body)
	}
}

func TestConnectWalletEndpoint(t *testing.T) {
	app, f := setupAuthApp(t)
	ctx := context.Background()
	mine, _ := f.svc.Signin(ctx, SigninRequest{LoginMethod: "metamask", Address: walletA})
	_, _ = f.svc.Signin(ctx, SigninRequest{LoginMethod: "metamask", Address: walletB})

	status, _ := call(t, app, fiber.MethodPost, "/auth/connect-wallet", "", `{"address":"`+walletA+`","loginMethod":"metamask"}`)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	status, body := call(t, app, fiber.MethodPost, "/auth/connect-wallet", mine.Tokens.AccessToken, `{"address":"`+walletA+`","loginMethod":"wallet_connect"}`)
	if status != fiber.StatusCreated || body["loginMethod"] != "wallet_connect" {
		t.Fatalf("connect own wallet: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPost, "/auth/connect-wallet", mine.Tokens.AccessToken, `{"address":"`+walletB+`","loginMethod":"metamask"}`)
	if status != fiber.StatusUnauthorized || body["message"] != "This wallet address is already connected to another account" {
		t.Fatalf("expected 401 got %d: %v", status, body)
	}
}

func TestUsernameSuggestEndpoint(t *testing.T) {
	app, _ := setupAuthApp(t)

	status, body := call(t, app, fiber.MethodGet, "/auth/username-suggest?base=Crypto%20King!", "", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d: %v", status, body)
	}
	name, _ := body["username"].(string)
	if !strings.HasPrefix(name, "cryptoking_") || !user.ValidUsername(name) {
		t.Fatalf("unexpected suggestion %q", name)
	}
}
