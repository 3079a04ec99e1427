package notification

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/predicta-labs/predicta_api/internal/config"
)

// fakeSMTP accepts one session without STARTTLS or AUTH and returns the DATA payload.
func fakeSMTP(t *testing.T) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	data := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch cmd {
			case "EHLO":
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 8BITMIME")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				data <- strings.Join(lines, "\n")
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("250 ok")
			}
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, port, data
}

func TestSMTPNotifierDeliversVerificationCode(t *testing.T) {
	host, port, data := fakeSMTP(t)
	n := NewSMTPNotifier(config.MailConfig{Host: host, Port: port, From: "noreply@example.com", Timeout: 5 * time.Second})

	err := n.Send(context.Background(), Message{Kind: KindEmailVerification, Destination: "a@b.com", Code: "123456"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case payload := <-data:
		for _, want := range []string{"Subject: Email verification", "To: a@b.com", "From: noreply@example.com", "123456"} {
			if !strings.Contains(payload, want) {
				t.Fatalf("expected %q in payload:\n%s", want, payload)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no DATA received")
	}
}

func TestSMTPNotifierDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	_ = ln.Close()

	n := NewSMTPNotifier(config.MailConfig{Host: "127.0.0.1", Port: addr.Port, From: "x@y.z", Timeout: time.Second})
	if err := n.Send(context.Background(), Message{Kind: KindEmailVerification, Destination: "a@b.com", Code: "1"}); err == nil {
		t.Fatalf("expected dial error")
	}
}
