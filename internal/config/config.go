package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendRedis}

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// Redis
	RedisURL       string
	RedisKeyPrefix string

	// AMQP events. An empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sessions
	SessionTTL          time.Duration
	SessionMax          int
	AdminLoginPerMinute int

	// Seeded when the admin collection is empty. An empty password skips seeding.
	DefaultAdminUsername string
	DefaultAdminPassword string

	ReceiptMaxBytes int64

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", BackendSQLite),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/financefam.db"),

		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "financefam"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "financefam"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "financefam_events"),

		SessionTTL:          getEnvDuration("SESSION_TTL", 12*time.Hour),
		SessionMax:          getEnvInt("SESSION_MAX", 1000),
		AdminLoginPerMinute: getEnvInt("ADMIN_LOGIN_PER_MINUTE", 10),

		DefaultAdminUsername: getEnv("DEFAULT_ADMIN_USERNAME", "admin"),
		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),

		ReceiptMaxBytes: int64(getEnvInt("RECEIPT_MAX_BYTES", 5<<20)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate checks every setting and reports all problems in one error.
func (c *Config) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		fail("invalid port '%s': must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		fail("invalid port %d: must be between 1 and 65535", port)
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		fail("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends)
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			fail("SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					fail("cannot create SQLite database directory '%s': %v", dir, err)
				}
			}
		}
	case BackendRedis:
		if u, err := url.Parse(c.RedisURL); err != nil || c.RedisURL == "" {
			fail("invalid Redis URL '%s'", c.RedisURL)
		} else if u.Scheme != "redis" && u.Scheme != "rediss" {
			fail("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", u.Scheme)
		}
		if strings.ContainsAny(c.RedisKeyPrefix, " \t\n") {
			fail("invalid Redis key prefix '%s': must not contain whitespace", c.RedisKeyPrefix)
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			fail("invalid AMQP URL '%s': %v", c.AMQPURL, err)
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			fail("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme)
		}
		if c.AMQPExchange == "" {
			fail("AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SessionTTL < time.Minute {
		fail("invalid session TTL %v: must be at least 1 minute", c.SessionTTL)
	}
	if c.SessionMax < 1 {
		fail("invalid session max %d: must be at least 1", c.SessionMax)
	}
	if c.AdminLoginPerMinute < 1 {
		fail("invalid admin login rate %d: must be at least 1 per minute", c.AdminLoginPerMinute)
	}
	if c.DefaultAdminPassword != "" && strings.TrimSpace(c.DefaultAdminUsername) == "" {
		fail("default admin username cannot be empty when a default admin password is set")
	}
	if c.ReceiptMaxBytes < 1 {
		fail("invalid receipt max bytes %d: must be positive", c.ReceiptMaxBytes)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		fail("%v", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		fail("invalid log format '%s': must be 'text' or 'json'", c.LogFormat)
	}

	if result != nil {
		result.ErrorFormat = formatErrors
		return result
	}
	return nil
}

// ParseLevel maps LOG_LEVEL names onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return lvl, nil
}

func formatErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return "configuration validation failed:\n- " + strings.Join(msgs, "\n- ")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
