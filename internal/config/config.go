package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// AMQP; an empty URL runs without a broker
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export
	Exporter            string // sheets or memory
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Workers
	SyncBatchSize     int
	SyncInterval      time.Duration
	RecurringInterval time.Duration

	// Dashboards
	WindowRadiusDays    int
	UpcomingHorizonDays int
	CacheSize           int
	CacheTTL            time.Duration
	Timezone            string

	LogLevel string
}

var validExporters = []string{"sheets", "memory"}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finanzas.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finanzas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_transactions"),

		Exporter:            getEnv("SYNC_EXPORTER", "sheets"),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		SyncBatchSize:     getEnvInt("SYNC_BATCH_SIZE", 50),
		SyncInterval:      getEnvDuration("SYNC_INTERVAL", 5*time.Minute),
		RecurringInterval: getEnvDuration("RECURRING_INTERVAL", time.Hour),

		WindowRadiusDays:    getEnvInt("WINDOW_RADIUS_DAYS", 30),
		UpcomingHorizonDays: getEnvInt("UPCOMING_HORIZON_DAYS", 7),
		CacheSize:           getEnvInt("CACHE_SIZE", 256),
		CacheTTL:            getEnvDuration("CACHE_TTL", 10*time.Minute),
		Timezone:            getEnv("TIMEZONE", "UTC"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Location returns the time zone "today" is computed in.
// An invalid zone falls back to UTC; Validate reports it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty")
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

	if !slices.Contains(validExporters, c.Exporter) {
		errors = append(errors, fmt.Sprintf("invalid exporter '%s': must be one of %v", c.Exporter, validExporters))
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

	if c.RecurringInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if c.WindowRadiusDays < 0 || c.WindowRadiusDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid window radius %d: must be between 0 and 366 days", c.WindowRadiusDays))
	}
	if c.UpcomingHorizonDays < 0 || c.UpcomingHorizonDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid upcoming horizon %d: must be between 0 and 366 days", c.UpcomingHorizonDays))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateSyncWorker checks the settings only the sync worker needs.
func (c *Config) ValidateSyncWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required by the sync worker")
	}
	if c.Exporter == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using the sheets exporter")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using the sheets exporter")
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("sync worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
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
