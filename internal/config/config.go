package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
)

type Config struct {
	// HTTP server
	Port            string        `env:"PORT" envDefault:"8081"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitPerMin int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Backend selection: memory, sqlite or mongo
	DataBackend  string        `env:"DATA_BACKEND" envDefault:"memory"`
	SQLiteDBPath string        `env:"SQLITE_DB_PATH" envDefault:"./data/spendguard.db"`
	MongoURI     string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB      string        `env:"MONGO_DB" envDefault:"spendguard"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// Budget behaviour
	StrictAdmission     bool   `env:"STRICT_ADMISSION" envDefault:"false"`
	CrossOwnerInference bool   `env:"CROSS_OWNER_INFERENCE" envDefault:"true"`
	Timezone            string `env:"TIMEZONE" envDefault:"UTC"`

	// Auth
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// AMQP, empty URL disables publishing
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"spendguard"`
	AlertQueue   string `env:"AMQP_ALERT_QUEUE" envDefault:"limit_alerts"`
	ReportQueue  string `env:"AMQP_REPORT_QUEUE" envDefault:"monthly_reports"`

	// Worker
	RolloverSchedule string `env:"ROLLOVER_SCHEDULE" envDefault:"5 0 1 * *"`
	TokenPurgeEvery  string `env:"TOKEN_PURGE_SCHEDULE" envDefault:"@hourly"`

	// Google Sheets report export, empty spreadsheet ID disables it
	GoogleSpreadsheetID   string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName       string `env:"GOOGLE_SHEET_NAME" envDefault:"Reports"`
	GoogleOAuthClientFile string `env:"GOOGLE_OAUTH_CLIENT_FILE"`
	GoogleOAuthTokenFile  string `env:"GOOGLE_OAUTH_TOKEN_FILE"`
	GoogleOAuthClientJSON string `env:"GOOGLE_OAUTH_CLIENT_JSON"`
	GoogleOAuthTokenJSON  string `env:"GOOGLE_OAUTH_TOKEN_JSON"`

	// Service account credentials, used when no OAuth client is set
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
}

var (
	validBackends   = []string{"memory", "sqlite", "mongo"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from vars only. Used by tests.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Location resolves Timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// SheetsEnabled reports whether report export to Google Sheets is configured.
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	case "mongo":
		if u, err := url.Parse(c.MongoURI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			errs = append(errs, fmt.Sprintf("invalid Mongo URI '%s': scheme must be 'mongodb' or 'mongodb+srv'", c.MongoURI))
		}
		if c.MongoDB == "" {
			errs = append(errs, "Mongo database name cannot be empty when using mongo backend")
		}
	}

	if c.StoreTimeout < 100*time.Millisecond || c.StoreTimeout > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid store timeout %v: must be between 100ms and 1m", c.StoreTimeout))
	}
	if c.RateLimitPerMin < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMin))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters")
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AlertQueue == "" || c.ReportQueue == "" {
			errs = append(errs, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errs = append(errs, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasOAuthClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
		hasServiceAccount := c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != ""
		switch {
		case hasOAuthClient:
			if c.GoogleOAuthTokenFile == "" && c.GoogleOAuthTokenJSON == "" {
				errs = append(errs, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for report export")
			}
		case !hasServiceAccount:
			errs = append(errs, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON (or a GOOGLE_SERVICE_ACCOUNT_*) must be provided for report export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.GoogleOAuthClientFile != "" {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if c.GoogleOAuthTokenFile != "" {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
