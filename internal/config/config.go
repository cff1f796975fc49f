package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends accepted by DATA_BACKEND.
var Backends = []string{"sqlite", "postgres", "memory"}

type Config struct {
	// Telegram
	BotToken string
	BotDebug bool

	// Health server
	HealthPort string

	// Storage
	DataBackend          string
	SQLiteDBPath         string
	DatabaseURL          string
	StorageRetryAttempts int

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror, optional
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Conversation and reports
	DispatchWorkers  int
	ChartConcurrency int
	PendingTTL       time.Duration
	ReportCacheTTL   time.Duration
	ReportCacheSize  int

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		BotToken: getEnv("BOT_TOKEN", ""),
		BotDebug: getEnvBool("BOT_DEBUG", false),

		HealthPort: getEnv("HEALTH_PORT", "8081"),

		DataBackend:          getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath:         getEnv("SQLITE_DB_PATH", "./data/finbot.db"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		StorageRetryAttempts: getEnvInt("STORAGE_RETRY_ATTEMPTS", 3),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finbot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		DispatchWorkers:  getEnvInt("DISPATCH_WORKERS", 4),
		ChartConcurrency: getEnvInt("CHART_CONCURRENCY", 2),
		PendingTTL:       getEnvDuration("PENDING_TTL", 30*time.Minute),
		ReportCacheTTL:   getEnvDuration("REPORT_CACHE_TTL", time.Minute),
		ReportCacheSize:  getEnvInt("REPORT_CACHE_SIZE", 1024),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// MirrorEnabled reports whether a spreadsheet mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration shared by every binary and returns
// all problems at once.
func (c *Config) Validate() error {
	return combine(c.problems())
}

// ValidateBot additionally requires the Telegram token.
func (c *Config) ValidateBot() error {
	problems := c.problems()
	if strings.TrimSpace(c.BotToken) == "" {
		problems = append(problems, "BOT_TOKEN is required")
	}
	return combine(problems)
}

// ValidateWorker additionally requires AMQP and the spreadsheet mirror.
func (c *Config) ValidateWorker() error {
	problems := c.problems()
	if c.AMQPURL == "" {
		problems = append(problems, "AMQP_URL is required for the mirror worker")
	}
	if !c.MirrorEnabled() {
		problems = append(problems, "GOOGLE_SPREADSHEET_ID is required for the mirror worker")
	}
	if c.DataBackend == "memory" {
		problems = append(problems, "memory backend cannot be shared with the mirror worker")
	}
	return combine(problems)
}

func combine(problems []string) error {
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func (c *Config) problems() []string {
	var errors []string

	if port, err := strconv.Atoi(c.HealthPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.HealthPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.StorageRetryAttempts < 1 || c.StorageRetryAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid storage retry attempts %d: must be between 1 and 10", c.StorageRetryAttempts))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MirrorEnabled() && c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.DispatchWorkers < 1 || c.DispatchWorkers > 256 {
		errors = append(errors, fmt.Sprintf("invalid dispatch workers %d: must be between 1 and 256", c.DispatchWorkers))
	}
	if c.ChartConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid chart concurrency %d: must be at least 1", c.ChartConcurrency))
	}
	if c.PendingTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid pending TTL %v: must be at least 1 second", c.PendingTTL))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}
	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	return errors
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
