package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/predicta-labs/predicta_api/internal/config"
)

// SMTPNotifier mails verification codes. Secure selects implicit TLS
// (usually port 465); otherwise STARTTLS is used when the server offers it.
type SMTPNotifier struct {
	host     string
	port     int
	secure   bool
	username string
	password string
	from     string
	timeout  time.Duration
}

// NewSMTPNotifier builds a notifier from mail settings.
func NewSMTPNotifier(cfg config.MailConfig) *SMTPNotifier {
	return &SMTPNotifier{
		host:     cfg.Host,
		port:     cfg.Port,
		secure:   cfg.Secure,
		username: cfg.User,
		password: cfg.Password,
		from:     cfg.From,
		timeout:  cfg.Timeout,
	}
}

// Send renders and delivers the message. Kinds other than email verification are ignored.
func (n *SMTPNotifier) Send(ctx context.Context, message Message) error {
	if message.Kind != KindEmailVerification {
		return nil
	}
	body, err := renderVerificationEmail(message.Code)
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", n.from),
		fmt.Sprintf("To: %s", message.Destination),
		fmt.Sprintf("Subject: %s", verificationSubject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")
	return n.deliver(ctx, message.Destination, []byte(msg))
}

func (n *SMTPNotifier) deliver(ctx context.Context, to string, msg []byte) error {
	deadline := time.Now().Add(n.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	addr := net.JoinHostPort(n.host, strconv.Itoa(n.port))

	dialer := &net.Dialer{Deadline: deadline}
	var (
		conn net.Conn
		err  error
	)
	if n.secure {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: n.host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, n.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = c.Close() }()

	if !n.secure {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: n.host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if n.username != "" {
		if err := c.Auth(smtp.PlainAuth("", n.username, n.password, n.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(n.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
