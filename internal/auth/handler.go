package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/predicta-labs/predicta_api/internal/user"
	"github.com/predicta-labs/predicta_api/internal/validation"
)

// Handler exposes auth endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type connectWalletRequest struct {
	Address     string `json:"address" validate:"required,eth_addr"`
	LoginMethod string `json:"loginMethod" validate:"required,oneof=metamask wallet_connect"`
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required,len=6,number"`
}

type verifyEmailResponse struct {
	ID              string  `json:"id"`
	Email           *string `json:"email"`
	IsEmailVerified bool    `json:"isEmailVerified"`
	Message         string  `json:"message"`
}

// Signin authenticates a wallet, email or delegated identity.
func (h *Handler) Signin(c *fiber.Ctx) error {
	var req SigninRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.svc.Signin(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			return fiber.NewError(http.StatusConflict, "Username already taken")
		}
		h.logger.Warn("signin rejected", slog.String("login_method", req.LoginMethod), slog.Any("error", err))
		return unauthorized(err, "Authentication failed")
	}
	if result.NeedsEmailVerification {
		return c.Status(http.StatusCreated).JSON(fiber.Map{"needsEmailVerification": true, "email": result.Email})
	}
	return c.Status(http.StatusCreated).JSON(result.Tokens)
}

// Refresh issues a new token pair from a refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	pair, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return unauthorized(err, "Invalid refresh token")
	}
	return c.Status(http.StatusCreated).JSON(pair)
}

// ConnectWallet links a wallet address to the authenticated user.
func (h *Handler) ConnectWallet(c *fiber.Ctx) error {
	current, ok := user.CurrentUser(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	}
	var req connectWalletRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	u, err := h.svc.ConnectWallet(c.UserContext(), current.ID, req.Address, req.LoginMethod)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "User not found")
		}
		h.logger.Warn("connect wallet rejected", slog.String("user_id", current.ID), slog.Any("error", err))
		return unauthorized(err, "Failed to connect wallet")
	}
	return c.Status(http.StatusCreated).JSON(u)
}

// VerifyEmail consumes a six digit code.
func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	u, err := h.svc.VerifyEmail(c.UserContext(), req.Token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, publicMessage(err, "Verification code not found or expired"))
		}
		return unauthorized(err, "Email verification failed")
	}
	return c.Status(http.StatusOK).JSON(verifyEmailResponse{
		ID:              u.ID,
		Email:           u.Email,
		IsEmailVerified: u.IsEmailVerified,
		Message:         "Email successfully verified",
	})
}

// UsernameSuggest returns a free username derived from ?base=.
func (h *Handler) UsernameSuggest(c *fiber.Ctx) error {
	username, err := h.svc.GenerateUsername(c.UserContext(), c.Query("base"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"username": username})
}

func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return verr
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if r, ok := dst.(*SigninRequest); ok {
		r.Username = strings.TrimSpace(r.Username)
	}
	return validation.Struct(dst)
}

// unauthorized renders err as 401 with its client-facing message. Errors
// without one (infrastructure failures) get the fallback text.
func unauthorized(err error, fallback string) error {
	return fiber.NewError(http.StatusUnauthorized, publicMessage(err, fallback))
}

func publicMessage(err error, fallback string) string {
	var ae *authError
	if errors.As(err, &ae) {
		return ae.msg
	}
	for _, known := range []error{user.ErrEmailTaken, user.ErrAddressTaken, user.ErrMissingIdentity, user.ErrInvalidUsername} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return fallback
}
