package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Routing      RoutingConfig
	Realtime     RealtimeConfig
	Worker       WorkerConfig
	Console      ConsoleConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters. Tokens are issued by the
// identity provider; the service only verifies them.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	// DeleteRequiresTechnical keeps owner deletion for staff and mst behind
	// the technical skill.
	DeleteRequiresTechnical bool
}

// NotificationConfig controls notification fan-out.
type NotificationConfig struct {
	Enabled     bool
	BodyPreview int
}

// SLAConfig holds resolution targets per priority and per category.
type SLAConfig struct {
	HoursByPriority   map[domain.TicketPriority]int
	CategoryOverrides map[string]map[domain.TicketPriority]int
}

// RoutingConfig controls ticket routing at creation.
type RoutingConfig struct {
	AutoAssign bool
}

// RealtimeConfig controls the Redis notification channel.
type RealtimeConfig struct {
	Enabled       bool
	ChannelPrefix string
}

// WorkerConfig controls background jobs.
type WorkerConfig struct {
	SLASweepSchedule string
	SLASweepBatch    int
}

// ConsoleConfig is read by the flow console binary.
type ConsoleConfig struct {
	APIURL            string
	Token             string
	PropertyID        string
	RefreshTimeoutSec int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	overrides, err := ParseCategoryOverrides(os.Getenv("SLA_CATEGORY_OVERRIDES"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_CATEGORY_OVERRIDES: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "facility-tickets"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:   getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			DeleteRequiresTechnical: getEnvAsBool("AUTH_DELETE_REQUIRES_TECHNICAL", true),
		},
		Notification: NotificationConfig{
			Enabled:     getEnvAsBool("NOTIFY_ENABLED", true),
			BodyPreview: getEnvAsInt("NOTIFY_BODY_PREVIEW", 120),
		},
		SLA: SLAConfig{
			HoursByPriority: map[domain.TicketPriority]int{
				domain.TicketPriorityLow:    getEnvAsInt("SLA_HOURS_LOW", 72),
				domain.TicketPriorityMedium: getEnvAsInt("SLA_HOURS_MEDIUM", 24),
				domain.TicketPriorityHigh:   getEnvAsInt("SLA_HOURS_HIGH", 8),
				domain.TicketPriorityUrgent: getEnvAsInt("SLA_HOURS_URGENT", 2),
			},
			CategoryOverrides: overrides,
		},
		Routing: RoutingConfig{
			AutoAssign: getEnvAsBool("ROUTING_AUTO_ASSIGN", true),
		},
		Realtime: RealtimeConfig{
			Enabled:       getEnvAsBool("REALTIME_ENABLED", true),
			ChannelPrefix: getEnv("REALTIME_CHANNEL_PREFIX", "tickets"),
		},
		Worker: WorkerConfig{
			SLASweepSchedule: getEnv("SLA_SWEEP_SCHEDULE", "@every 1m"),
			SLASweepBatch:    getEnvAsInt("SLA_SWEEP_BATCH", 500),
		},
		Console: ConsoleConfig{
			APIURL:            getEnv("CONSOLE_API_URL", "http://127.0.0.1:8080"),
			Token:             os.Getenv("CONSOLE_TOKEN"),
			PropertyID:        os.Getenv("CONSOLE_PROPERTY_ID"),
			RefreshTimeoutSec: getEnvAsInt("CONSOLE_REFRESH_TIMEOUT_SECONDS", 10),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Targets converts the configured hours to durations.
func (s SLAConfig) Targets() map[domain.TicketPriority]time.Duration {
	out := make(map[domain.TicketPriority]time.Duration, len(s.HoursByPriority))
	for p, h := range s.HoursByPriority {
		out[p] = time.Duration(h) * time.Hour
	}
	return out
}

// Overrides converts the per-category hours to durations.
func (s SLAConfig) Overrides() map[string]map[domain.TicketPriority]time.Duration {
	out := make(map[string]map[domain.TicketPriority]time.Duration, len(s.CategoryOverrides))
	for category, byPriority := range s.CategoryOverrides {
		out[category] = make(map[domain.TicketPriority]time.Duration, len(byPriority))
		for p, h := range byPriority {
			out[category][p] = time.Duration(h) * time.Hour
		}
	}
	return out
}

// RefreshTimeout bounds a single console snapshot fetch.
func (c ConsoleConfig) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutSec) * time.Second
}

// ParseCategoryOverrides parses "category:priority=hours" entries separated by commas,
// e.g. "plumbing:urgent=1,electrical:high=4".
func ParseCategoryOverrides(raw string) (map[string]map[domain.TicketPriority]int, error) {
	out := map[string]map[domain.TicketPriority]int{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q: missing '='", entry)
		}
		category, priority, ok := strings.Cut(strings.TrimSpace(key), ":")
		if !ok || category == "" {
			return nil, fmt.Errorf("entry %q: expected category:priority", entry)
		}
		p := domain.TicketPriority(strings.ToLower(strings.TrimSpace(priority)))
		if !p.Valid() {
			return nil, fmt.Errorf("entry %q: unknown priority %q", entry, priority)
		}
		hours, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("entry %q: hours must be a positive integer", entry)
		}
		if out[category] == nil {
			out[category] = map[domain.TicketPriority]int{}
		}
		out[category][p] = hours
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
