package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret = "a-very-long-and-secure-secret-key-that-is-at-least-256-bits-long-for-jwt-signing"
	minSecretLength  = 32
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME" envDefault:"Predicta"`
	AppEnv         string        `env:"APP_ENV" envDefault:"development"`
	Port           string        `env:"PORT" envDefault:"3000"`
	WSPort         string        `env:"WS_PORT" envDefault:"3001"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	CORSOrigins    string        `env:"CORS_ORIGINS" envDefault:"*"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	JWT      JWTConfig
	Mail     MailConfig
	Kafka    KafkaConfig
	Web3Auth Web3AuthConfig
}

// JWTConfig holds the shared signing secret and token lifetimes in seconds.
type JWTConfig struct {
	Secret               string `env:"JWT_SECRET" envDefault:"a-very-long-and-secure-secret-key-that-is-at-least-256-bits-long-for-jwt-signing"`
	AccessExpiresInSecs  int    `env:"JWT_ACCESS_EXPIRES_IN" envDefault:"36000"`
	RefreshExpiresInSecs int    `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"604800"`
}

// AccessTTL returns the access token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.AccessExpiresInSecs) * time.Second
}

// RefreshTTL returns the refresh token lifetime.
func (j JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(j.RefreshExpiresInSecs) * time.Second
}

// MailConfig describes the SMTP transport used for verification codes.
type MailConfig struct {
	Host     string        `env:"EMAIL_HOST" envDefault:"smtp.gmail.com"`
	Port     int           `env:"EMAIL_PORT" envDefault:"587"`
	Secure   bool          `env:"EMAIL_SECURE" envDefault:"false"`
	User     string        `env:"EMAIL_USER"`
	Password string        `env:"EMAIL_PASSWORD"`
	From     string        `env:"EMAIL_FROM" envDefault:"noreply@example.com"`
	Timeout  time.Duration `env:"MAIL_TIMEOUT" envDefault:"15s"`
	CodeTTL  time.Duration `env:"EMAIL_CODE_TTL" envDefault:"15m"`
}

// Enabled reports whether enough SMTP settings are present to deliver mail.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.User != "" && m.Password != ""
}

// KafkaConfig enables publishing verification events instead of sending mail directly.
type KafkaConfig struct {
	Broker   string `env:"KAFKA_BROKER"`
	Topic    string `env:"KAFKA_TOPIC" envDefault:"user-events"`
	Username string `env:"KAFKA_USERNAME"`
	Password string `env:"KAFKA_PASSWORD"`
}

// Enabled reports whether a broker is configured.
func (k KafkaConfig) Enabled() bool {
	return k.Broker != ""
}

// Web3AuthConfig points at the identity provider key set used for idToken logins.
type Web3AuthConfig struct {
	JWKSURL         string        `env:"WEB3AUTH_JWKS_URL" envDefault:"https://api-auth.web3auth.io/.well-known/jwks.json"`
	RefreshInterval time.Duration `env:"WEB3AUTH_JWKS_REFRESH" envDefault:"1h"`
	Timeout         time.Duration `env:"WEB3AUTH_JWKS_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration values from the environment and populates a Config instance.
// Outside production a local .env file is loaded first when present.
func Load() (Config, error) {
	if !isProd(os.Getenv("APP_ENV")) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	if c.JWT.AccessExpiresInSecs <= 0 {
		return fmt.Errorf("JWT_ACCESS_EXPIRES_IN must be positive")
	}
	if c.JWT.RefreshExpiresInSecs <= 0 {
		return fmt.Errorf("JWT_REFRESH_EXPIRES_IN must be positive")
	}
	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.JWT.Secret == defaultJWTSecret || len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be set to at least %d characters when APP_ENV=%s", minSecretLength, c.AppEnv)
	}
	return nil
}

// IsDev reports whether the app runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	return listenAddr(c.Port)
}

// WSAddress returns the listen address of the websocket server.
func (c Config) WSAddress() string {
	return listenAddr(c.WSPort)
}

func listenAddr(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

func isProd(appEnv string) bool {
	switch strings.ToLower(appEnv) {
	case "prod", "production":
		return true
	default:
		return false
	}
}
