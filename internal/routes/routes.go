package routes

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/predicta-labs/predicta_api/internal/auth"
	"github.com/predicta-labs/predicta_api/internal/config"
	"github.com/predicta-labs/predicta_api/internal/middleware"
	"github.com/predicta-labs/predicta_api/internal/notification"
	"github.com/predicta-labs/predicta_api/internal/user"
)

// Deps aggregates shared dependencies required to wire routes. At most one of
// DB and SQLite is set; with neither, users live in memory.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	SQLite    *sql.DB
	Cache     *redis.Client
	Logger    *slog.Logger
	Notifier  notification.Notifier
	Verifier  auth.TokenVerifier
	Publisher user.Publisher
}

var corsHeaders = strings.Join([]string{
	fiber.HeaderOrigin,
	fiber.HeaderContentType,
	fiber.HeaderAccept,
	fiber.HeaderAuthorization,
	"Idempotency-Key",
	"X-Request-ID",
}, ", ")

// Setup configures middlewares and all application routes. It returns the
// session issuer so other transports resolve tokens the same way.
func Setup(app *fiber.App, d Deps) (*auth.Sessions, error) {
	if !d.Cfg.IsDev() && d.DB == nil && d.SQLite == nil {
		return nil, fmt.Errorf("a database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: d.Cfg.CORSOrigins, AllowHeaders: corsHeaders}))
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	repo := userRepository(d)
	users := user.NewService(repo, d.Logger, d.Publisher)
	sessions := auth.NewSessions(d.Cfg.JWT, repo)

	var codes auth.CodeTracker = auth.NewMemoryCodeTracker()
	if d.Cache != nil {
		codes = auth.NewRedisCodeTracker(d.Cache)
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	authSvc := auth.NewService(auth.Deps{
		Users:       users,
		Sessions:    sessions,
		Credentials: auth.NewCredentialVerifier(d.Verifier),
		Codes:       codes,
		CodeTTL:     d.Cfg.Mail.CodeTTL,
		Notifier:    notifier,
		Publisher:   d.Publisher,
		Logger:      d.Logger,
	})

	bearer := middleware.BearerAuth(func(ctx context.Context, token string) (any, bool) {
		u, ok := sessions.Resolve(ctx, token)
		if !ok {
			return nil, false
		}
		return u, true
	}, user.LocalsKey)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterAuthRoutes(api, auth.NewHandler(authSvc, d.Logger), bearer)
	RegisterUserRoutes(api, user.NewHandler(users), bearer)

	return sessions, nil
}

func userRepository(d Deps) user.Repository {
	switch {
	case d.DB != nil:
		return user.NewPostgresRepository(d.DB)
	case d.SQLite != nil:
		return user.NewSQLiteRepository(d.SQLite)
	default:
		d.Logger.Warn("no database configured, users are kept in memory")
		return user.NewMemoryRepository()
	}
}
