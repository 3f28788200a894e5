package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nexuscrm/taskdesk/pkg/constants"
)

// Config holds every runtime setting. Values come from the environment, with a
// .env file loaded first when one is present.
type Config struct {
	Env         string
	ServiceName string
	Port        int

	DB       DBConfig
	RedisURL string

	JWTSecret string
	TokenTTL  time.Duration

	EventDispatchMode  string
	OutboxPollInterval time.Duration

	Webhook WebhookConfig

	RateLimitRPM int

	KafkaBrokers      []string
	KafkaTopic        string
	KafkaWriteTimeout time.Duration

	OTLPEndpoint string
	OTLPHeaders  string

	NotifyEmailEnabled bool
	AutomationsFile    string

	// Admin is created on first boot when the users table is empty.
	Admin AdminConfig
}

type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	TLS      bool
}

type WebhookConfig struct {
	PollInterval     time.Duration
	MaxAttempts      int
	Timeout          time.Duration
	FailureThreshold int
	BackoffBase      time.Duration
	BatchSize        int
}

// DSN builds the go-sql-driver/mysql connection string.
func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		d.User, d.Password, d.Host, d.Port, d.Name)
	if d.TLS {
		dsn += "&tls=tidb"
	}
	return dsn
}

// TelemetryEnabled reports whether an OTLP collector is configured.
func (c *Config) TelemetryEnabled() bool {
	return c.OTLPEndpoint != ""
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present) from the working directory or a parent, then
// the environment.
func Load() (*Config, error) {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			slog.Debug("loaded env file", "path", path)
			break
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:         envString("APP_ENV", "development"),
		ServiceName: envString("SERVICE_NAME", "taskdesk"),
		Port:        envInt("PORT", 3001),
		DB: DBConfig{
			Host:     envString("DB_HOST", "127.0.0.1"),
			Port:     envInt("DB_PORT", 4000),
			User:     envString("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     envString("DB_NAME", "taskdesk"),
			TLS:      envBool("DB_TLS", false),
		},
		RedisURL:           os.Getenv("REDIS_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           envDuration("TOKEN_TTL", 24*time.Hour),
		EventDispatchMode:  strings.ToLower(envString("EVENT_DISPATCH_MODE", constants.DispatchModeSync)),
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		Webhook: WebhookConfig{
			PollInterval:     envDuration("WEBHOOK_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:      envInt("WEBHOOK_MAX_ATTEMPTS", 6),
			Timeout:          envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			FailureThreshold: envInt("WEBHOOK_FAILURE_THRESHOLD", 10),
			BackoffBase:      envDuration("WEBHOOK_BACKOFF_BASE", constants.WebhookBackoffBase),
			BatchSize:        envInt("WEBHOOK_BATCH_SIZE", 50),
		},
		RateLimitRPM:       envInt("RATE_LIMIT_RPM", 300),
		KafkaBrokers:       envList("KAFKA_BROKERS"),
		KafkaTopic:         envString("KAFKA_TOPIC", "crm.events"),
		KafkaWriteTimeout:  envDuration("KAFKA_WRITE_TIMEOUT", 2*time.Second),
		OTLPEndpoint:       strings.TrimRight(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "/"),
		OTLPHeaders:        os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		NotifyEmailEnabled: envBool("NOTIFY_EMAIL_ENABLED", false),
		AutomationsFile:    envString("AUTOMATIONS_FILE", "config/automations.yaml"),
		Admin: AdminConfig{
			Name:     envString("ADMIN_NAME", "Administrator"),
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.EventDispatchMode != constants.DispatchModeSync && c.EventDispatchMode != constants.DispatchModeOutbox {
		return fmt.Errorf("EVENT_DISPATCH_MODE must be %q or %q, got %q",
			constants.DispatchModeSync, constants.DispatchModeOutbox, c.EventDispatchMode)
	}
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.JWTSecret = "default-secret-change-in-production"
	}
	if c.Webhook.MaxAttempts < 1 {
		return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS must be at least 1")
	}
	if c.Webhook.FailureThreshold < 1 {
		return fmt.Errorf("WEBHOOK_FAILURE_THRESHOLD must be at least 1")
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must not be negative")
	}
	if c.Webhook.BatchSize < 1 {
		return fmt.Errorf("WEBHOOK_BATCH_SIZE must be at least 1")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"TOKEN_TTL", c.TokenTTL},
		{"OUTBOX_POLL_INTERVAL", c.OutboxPollInterval},
		{"WEBHOOK_POLL_INTERVAL", c.Webhook.PollInterval},
		{"WEBHOOK_TIMEOUT", c.Webhook.Timeout},
		{"WEBHOOK_BACKOFF_BASE", c.Webhook.BackoffBase},
		{"KAFKA_WRITE_TIMEOUT", c.KafkaWriteTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	return nil
}

func envString(name, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		return raw
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
		slog.Warn("ignoring invalid integer env var", "name", name, "value", raw)
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
		slog.Warn("ignoring invalid boolean env var", "name", name, "value", raw)
	}
	return fallback
}

// envDuration accepts Go durations ("500ms") or a bare number of seconds.
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("ignoring invalid duration env var", "name", name, "value", raw)
	return fallback
}

func envList(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
