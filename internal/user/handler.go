package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/predicta-labs/predicta_api/internal/validation"
)

// LocalsKey is the fiber locals key under which the bearer guard stores the *User.
const LocalsKey = "user"

// CurrentUser returns the user attached by the bearer guard.
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	u, ok := c.Locals(LocalsKey).(*User)
	return u, ok && u != nil
}

// Handler exposes profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a user HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type updateUsernameRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	current, ok := CurrentUser(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	}
	u, err := h.service.Get(c.UserContext(), current.ID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(u)
}

// CheckUsername reports whether a username is free.
func (h *Handler) CheckUsername(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		return fiber.NewError(http.StatusBadRequest, "Username is required")
	}
	available, err := h.service.IsUsernameAvailable(c.UserContext(), username)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"username": username, "isAvailable": available})
}

// UpdateUsername renames the authenticated user.
func (h *Handler) UpdateUsername(c *fiber.Ctx) error {
	current, ok := CurrentUser(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	}
	var req updateUsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := validation.Struct(req); err != nil {
		return err
	}
	u, err := h.service.UpdateUsername(c.UserContext(), current.ID, req.Username)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(u)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "User not found")
	case errors.Is(err, ErrUsernameTaken):
		return fiber.NewError(http.StatusConflict, "Username already taken")
	case errors.Is(err, ErrInvalidUsername):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return err
}

func badBody(err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr
	}
	return fiber.NewError(http.StatusBadRequest, err.Error())
}
