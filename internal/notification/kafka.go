package notification

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/predicta-labs/predicta_api/internal/config"
)

// VerifyEmailKey is the message key consumed by the mail worker.
const VerifyEmailKey = "user.verify_email"

// VerifyEmailEvent is the JSON value published for each verification code.
type VerifyEmailEvent struct {
	Email    string    `json:"email"`
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier hands verification codes to a mail worker through Kafka.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaNotifier builds a synchronous producer. SASL/PLAIN over TLS is used
// when credentials are configured.
func NewKafkaNotifier(cfg config.KafkaConfig) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}
	if cfg.Username != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{},
		}
	}
	return &KafkaNotifier{writer: writer, now: time.Now}
}

// Send publishes a verification event. Kinds other than email verification are ignored.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	if message.Kind != KindEmailVerification {
		return nil
	}
	payload, err := json.Marshal(VerifyEmailEvent{
		Email:    message.Destination,
		Code:     message.Code,
		IssuedAt: n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode verify email event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(VerifyEmailKey),
		Value: payload,
		Time:  n.now(),
	})
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
