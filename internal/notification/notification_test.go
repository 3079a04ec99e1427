package notification

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerNotifierWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := n.Send(context.Background(), Message{Kind: KindEmailVerification, Destination: "a@b.com", Code: "123456"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"kind=email_verification", "destination=a@b.com", "code=123456"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestNilLoggerNotifierIsNoop(t *testing.T) {
	var n *LoggerNotifier
	if err := n.Send(context.Background(), Message{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRenderVerificationEmail(t *testing.T) {
	body, err := renderVerificationEmail("654321")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, ">654321</h1>") {
		t.Fatalf("code missing from heading: %s", body)
	}

	escaped, err := renderVerificationEmail("<script>")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(escaped, "<script>") {
		t.Fatalf("template must escape input: %s", escaped)
	}
}
