package notification

import (
	"context"
	"log/slog"
)

const (
	// KindEmailVerification carries a one-time email verification code.
	KindEmailVerification = "email_verification"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Code        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger. It is the development
// fallback when neither SMTP nor Kafka is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "code", message.Code)
	return nil
}
