package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// Payment gateway. An empty token leaves intake unconfigured.
	MPAccessToken  string
	MPAPIURL       string
	GatewayTimeout time.Duration

	// LedgerTimezone fixes month boundaries and statement dates.
	LedgerTimezone string

	// AMQP. An empty URL disables the event bus.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// APIRateLimit is operator API requests per minute per client IP.
	APIRateLimit int
	// SummaryCacheTTL of zero disables the dashboard cache.
	SummaryCacheTTL time.Duration

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleJournalSheet       string

	LogLevel string
}

var validBackends = []string{"memory", "sqlite", "postgres"}

// LoadDotEnv reads .env files into the environment without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// NewViper returns a viper instance reading the environment with the
// service defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8081")
	v.SetDefault("DATA_BACKEND", "sqlite")
	v.SetDefault("SQLITE_DB_PATH", "./data/tesouraria.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MP_ACCESS_TOKEN", "")
	v.SetDefault("MP_API_URL", "https://api.mercadopago.com")
	v.SetDefault("GATEWAY_TIMEOUT", 10*time.Second)
	v.SetDefault("LEDGER_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "tesouraria")
	v.SetDefault("AMQP_QUEUE", "ledger_events")
	v.SetDefault("API_RATE_LIMIT", 120)
	v.SetDefault("SUMMARY_CACHE_TTL", 30*time.Second)
	v.SetDefault("GOOGLE_SPREADSHEET_ID", "")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	v.SetDefault("GOOGLE_JOURNAL_SHEET", "Lancamentos")
	v.SetDefault("LOG_LEVEL", "info")
	return v
}

// Load reads the configuration from the environment.
func Load() *Config {
	return FromViper(NewViper())
}

// FromViper reads the configuration from v, which may carry flag bindings.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port: v.GetString("PORT"),

		DataBackend:  strings.ToLower(strings.TrimSpace(v.GetString("DATA_BACKEND"))),
		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),
		DatabaseURL:  v.GetString("DATABASE_URL"),

		MPAccessToken:  strings.TrimSpace(v.GetString("MP_ACCESS_TOKEN")),
		MPAPIURL:       v.GetString("MP_API_URL"),
		GatewayTimeout: v.GetDuration("GATEWAY_TIMEOUT"),

		LedgerTimezone: v.GetString("LEDGER_TIMEZONE"),

		AMQPURL:      strings.TrimSpace(v.GetString("AMQP_URL")),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		APIRateLimit:    v.GetInt("API_RATE_LIMIT"),
		SummaryCacheTTL: v.GetDuration("SUMMARY_CACHE_TTL"),

		GoogleSpreadsheetID:      strings.TrimSpace(v.GetString("GOOGLE_SPREADSHEET_ID")),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),
		GoogleJournalSheet:       v.GetString("GOOGLE_JOURNAL_SHEET"),

		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// or postgresql:// URL")
		}
	}

	if u, err := url.Parse(c.MPAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid MP_API_URL '%s': must be an http(s) URL", c.MPAPIURL))
	}
	if c.GatewayTimeout < time.Second || c.GatewayTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid gateway timeout %v: must be between 1s and 2m", c.GatewayTimeout))
	}

	if _, err := time.LoadLocation(c.LedgerTimezone); err != nil || c.LedgerTimezone == "" {
		errors = append(errors, fmt.Sprintf("invalid ledger timezone '%s'", c.LedgerTimezone))
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

	if c.APIRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid API rate limit %d: must be at least 1", c.APIRateLimit))
	}
	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}

	if c.GoogleSpreadsheetID != "" {
		hasJSON := strings.TrimSpace(c.GoogleServiceAccountJSON) != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided with GOOGLE_SPREADSHEET_ID")
		}
		if !hasJSON && hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location returns the ledger time zone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.LedgerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IntakeConfigured reports whether webhook deliveries can be processed.
func (c *Config) IntakeConfigured() bool {
	return c.MPAccessToken != ""
}

// SheetsConfigured reports whether statement export is available.
func (c *Config) SheetsConfigured() bool {
	return c.GoogleSpreadsheetID != ""
}
