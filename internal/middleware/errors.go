package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/predicta-labs/predicta_api/internal/validation"
)

// ErrorBody is the uniform failure payload. Message is a string, or a list of
// strings for validation failures.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    any    `json:"message"`
	Error      string `json:"error"`
}

// ErrorHandler renders every handler error as an ErrorBody. Errors that are
// not *fiber.Error or *validation.Error become a logged 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			status      = http.StatusInternalServerError
			message any = "Internal server error"
		)

		var verr *validation.Error
		var ferr *fiber.Error
		switch {
		case errors.As(err, &verr):
			status = http.StatusBadRequest
			message = verr.Messages
		case errors.As(err, &ferr):
			status = ferr.Code
			message = ferr.Message
		default:
			logger.Error("unhandled error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", RequestIDFrom(c)),
				slog.Any("error", err),
			)
		}

		return c.Status(status).JSON(ErrorBody{
			StatusCode: status,
			Message:    message,
			Error:      http.StatusText(status),
		})
	}
}
