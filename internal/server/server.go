package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/predicta-labs/predicta_api/internal/auth"
	"github.com/predicta-labs/predicta_api/internal/config"
	"github.com/predicta-labs/predicta_api/internal/middleware"
	"github.com/predicta-labs/predicta_api/internal/notification"
	"github.com/predicta-labs/predicta_api/internal/realtime"
	"github.com/predicta-labs/predicta_api/internal/routes"
	"github.com/predicta-labs/predicta_api/internal/validation"
	"github.com/predicta-labs/predicta_api/internal/web3auth"
)

// Backends are the optional stores opened by main.
type Backends struct {
	Postgres *pgxpool.Pool
	SQLite   *sql.DB
	Cache    *redis.Client
}

// Server wraps the Fiber API, the websocket server and their shared dependencies.
type Server struct {
	app     *fiber.App
	ws      *http.Server
	hub     *realtime.Hub
	cfg     config.Config
	closers []io.Closer
	logger  *slog.Logger
}

// New instantiates both servers and delegates route wiring to routes.Setup.
// ctx bounds background work such as key set refreshes.
func New(ctx context.Context, cfg config.Config, b Backends, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: middleware.ErrorHandler(logger),
		JSONDecoder:  validation.UnmarshalStrict,
	})
	s := &Server{app: app, cfg: cfg, logger: logger, hub: realtime.NewHub(logger)}

	deps := routes.Deps{
		Cfg:       cfg,
		DB:        b.Postgres,
		SQLite:    b.SQLite,
		Cache:     b.Cache,
		Logger:    logger,
		Notifier:  s.notifier(),
		Publisher: s.hub,
	}
	if cfg.Web3Auth.JWKSURL != "" {
		verifier, err := web3auth.New(ctx, cfg.Web3Auth, logger)
		if err != nil {
			return nil, fmt.Errorf("web3auth verifier: %w", err)
		}
		deps.Verifier = verifier
	} else {
		logger.Warn("WEB3AUTH_JWKS_URL not set, idToken logins are disabled")
	}

	sessions, err := routes.Setup(app, deps)
	if err != nil {
		return nil, err
	}

	s.ws = &http.Server{
		Addr:              cfg.WSAddress(),
		Handler:           s.hub.Handler(sessionAuthenticator(sessions)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// notifier picks the verification transport: Kafka, then SMTP, then the log.
func (s *Server) notifier() notification.Notifier {
	switch {
	case s.cfg.Kafka.Enabled():
		n := notification.NewKafkaNotifier(s.cfg.Kafka)
		s.closers = append(s.closers, n)
		s.logger.Info("verification codes published to kafka", slog.String("topic", s.cfg.Kafka.Topic))
		return n
	case s.cfg.Mail.Enabled():
		s.logger.Info("verification codes sent over smtp", slog.String("host", s.cfg.Mail.Host))
		return notification.NewSMTPNotifier(s.cfg.Mail)
	default:
		s.logger.Warn("no mail transport configured, verification codes are only logged")
		return notification.NewLoggerNotifier(s.logger)
	}
}

func sessionAuthenticator(sessions *auth.Sessions) realtime.Authenticator {
	return func(ctx context.Context, token string) (string, bool) {
		u, ok := sessions.Resolve(ctx, token)
		if !ok {
			return "", false
		}
		return u.ID, true
	}
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP and websocket servers and returns when either stops.
func (s *Server) Listen() error {
	errCh := make(chan error, 2)
	go func() {
		errCh <- s.app.Listen(s.cfg.Address())
	}()
	go func() {
		s.logger.Info("websocket server listening", slog.String("addr", s.ws.Addr))
		if err := s.ws.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("websocket server: %w", err)
			return
		}
		errCh <- nil
	}()
	return <-errCh
}

// Shutdown notifies websocket clients, then gracefully stops both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	errs := []error{
		s.ws.Shutdown(ctx),
		s.app.ShutdownWithContext(ctx),
	}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
