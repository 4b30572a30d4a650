package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewWebhookPolicyHolder),
)

var (
	ErrMissingWebhookSecret = errors.New("CLERK_WEBHOOK_SIGNING_SECRET is required")
	ErrUnsupportedDatabase  = errors.New("DATABASE_TYPE must be postgres or sqlite")
)

// Config holds application configuration. It is built once at startup and
// passed to every component that needs it.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	Clerk   ClerkConfig
	Webhook WebhookConfig
	Redis   RedisConfig

	CORSOrigins []string
}

// TelemetryConfig feeds the logger, tracer and meter providers.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OTLPEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

// ClerkConfig carries identity provider credentials.
type ClerkConfig struct {
	WebhookSigningSecret string
	SecretKey            string
	Issuer               string
	JWKSURL              string
	JWTKey               string
	AuthorizedParties    []string
}

// WebhookConfig tunes webhook ingestion.
type WebhookConfig struct {
	PolicyPath   string
	ProcessedTTL time.Duration
	LockTTL      time.Duration
}

// RedisConfig configures the optional processed-event cache and event lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "fieldrunner"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          httpAddr(),
		DBType:            strings.ToLower(strings.TrimSpace(getenv("DATABASE_TYPE", "postgres"))),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "fieldrunner"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		Clerk: ClerkConfig{
			WebhookSigningSecret: strings.TrimSpace(getenv("CLERK_WEBHOOK_SIGNING_SECRET", "")),
			SecretKey:            strings.TrimSpace(getenv("CLERK_SECRET_KEY", "")),
			Issuer:               strings.TrimRight(strings.TrimSpace(getenv("CLERK_ISSUER", "")), "/"),
			JWKSURL:              strings.TrimSpace(getenv("CLERK_JWKS_URL", "")),
			JWTKey:               strings.TrimSpace(getenv("CLERK_JWT_KEY", "")),
			AuthorizedParties:    splitList(getenv("CLERK_AUTHORIZED_PARTIES", "")),
		},
		Webhook: WebhookConfig{
			PolicyPath:   strings.TrimSpace(getenv("WEBHOOK_POLICY_PATH", "")),
			ProcessedTTL: time.Duration(getenvInt("WEBHOOK_PROCESSED_TTL_SECONDS", 86400)) * time.Second,
			LockTTL:      time.Duration(getenvInt("WEBHOOK_LOCK_TTL_SECONDS", 30)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OTLPEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OTLPProtocol:  otlpProtocol(),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		CORSOrigins: splitList(getenv("CORS_ORIGINS", "http://localhost:3000")),
	}

	if cfg.Clerk.WebhookSigningSecret == "" {
		return Config{}, ErrMissingWebhookSecret
	}
	switch cfg.DBType {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("%w: got %q", ErrUnsupportedDatabase, cfg.DBType)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func httpAddr() string {
	if addr := strings.TrimSpace(os.Getenv("HTTP_ADDR")); addr != "" {
		return addr
	}
	return ":" + getenv("PORT", "3001")
}

// otlpProtocol prefers the traces-specific override, like the otel SDK does.
func otlpProtocol() string {
	if protocol := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); protocol != "" {
		return strings.ToLower(protocol)
	}
	return strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
