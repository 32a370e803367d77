// Package config loads FinWise settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"finwise/internal/log"
)

type Config struct {
	// HTTP Server
	Port          string
	SecureCookies bool
	AuthRateLimit string

	// Database
	SQLiteDBPath string

	// Advice
	GeminiAPIKey          string
	GeminiModel           string
	GeminiThinkingBudget  int
	AdviceMaxOutputTokens int
	AdviceTimeout         time.Duration
	AdviceMaxRetries      int

	// Sessions
	SessionTTL        time.Duration
	SessionMaxEntries int

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8081"),
		SecureCookies: getEnvBool("SECURE_COOKIES", false),
		AuthRateLimit: getEnv("AUTH_RATE_LIMIT", "10/min"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finwise.db"),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiThinkingBudget:  getEnvInt("GEMINI_THINKING_BUDGET", 0),
		AdviceMaxOutputTokens: getEnvInt("ADVICE_MAX_OUTPUT_TOKENS", 400),
		AdviceTimeout:         getEnvDuration("ADVICE_TIMEOUT", 30*time.Second),
		AdviceMaxRetries:      getEnvInt("ADVICE_MAX_RETRIES", 2),

		SessionTTL:        getEnvDuration("SESSION_TTL", 12*time.Hour),
		SessionMaxEntries: getEnvInt("SESSION_MAX_ENTRIES", 10000),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finwise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_export"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// AMQPEnabled reports whether an AMQP broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether a Google Sheets export target is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate checks everything the web server needs, including the Gemini key.
func (c *Config) Validate() error {
	var errs []string
	errs = c.validateCommon(errs)
	errs = c.validateServer(errs)
	errs = c.validateAMQP(errs)
	return joinErrors(errs)
}

// ValidateWorker checks what the export worker needs. AMQP is mandatory there.
func (c *Config) ValidateWorker() error {
	var errs []string
	errs = c.validateCommon(errs)
	if !c.AMQPEnabled() {
		errs = append(errs, "AMQP_URL is required for the export worker")
	}
	errs = c.validateAMQP(errs)
	errs = c.validateSheets(errs)

	if c.SyncBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	return joinErrors(errs)
}

// ValidateStorage checks only the database and logging settings, for the
// admin command.
func (c *Config) ValidateStorage() error {
	return joinErrors(c.validateCommon(nil))
}

func (c *Config) validateCommon(errs []string) []string {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOG_LEVEL: %v", err))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	return errs
}

func (c *Config) validateServer(errs []string) []string {
	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}
	if c.GeminiModel == "" {
		errs = append(errs, "GEMINI_MODEL cannot be empty")
	}
	if c.GeminiThinkingBudget < -1 {
		errs = append(errs, fmt.Sprintf("invalid Gemini thinking budget %d: must be -1 (model default) or at least 0", c.GeminiThinkingBudget))
	}
	if c.AdviceMaxOutputTokens < 1 {
		errs = append(errs, fmt.Sprintf("invalid advice max output tokens %d: must be at least 1", c.AdviceMaxOutputTokens))
	}
	if c.AdviceTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid advice timeout %v: must be at least 1 second", c.AdviceTimeout))
	}
	if c.AdviceMaxRetries < 0 || c.AdviceMaxRetries > 10 {
		errs = append(errs, fmt.Sprintf("invalid advice max retries %d: must be between 0 and 10", c.AdviceMaxRetries))
	}

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionMaxEntries < 1 {
		errs = append(errs, fmt.Sprintf("invalid session max entries %d: must be at least 1", c.SessionMaxEntries))
	}

	if _, err := ParseRate(c.AuthRateLimit); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AUTH_RATE_LIMIT: %v", err))
	}
	return errs
}

func (c *Config) validateAMQP(errs []string) []string {
	if !c.AMQPEnabled() {
		return errs
	}
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

func (c *Config) validateSheets(errs []string) []string {
	if !c.SheetsEnabled() {
		return errs
	}
	if c.GoogleSheetName == "" {
		errs = append(errs, "GOOGLE_SHEET_NAME is required when GOOGLE_SPREADSHEET_ID is set")
	}
	hasJSON := c.GoogleServiceAccountJSON != ""
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasJSON && !hasFile {
		errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}

// Rate is a request budget per time window, e.g. 10/min.
type Rate struct {
	Requests int
	Window   time.Duration
}

// ParseRate parses "N/unit" where unit is s, sec, m, min, h or hour.
func ParseRate(s string) (Rate, error) {
	n, unit, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rate{}, fmt.Errorf("rate %q must look like N/unit", s)
	}
	requests, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil || requests < 1 {
		return Rate{}, fmt.Errorf("rate %q needs a positive request count", s)
	}

	var window time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "s", "sec", "second":
		window = time.Second
	case "m", "min", "minute":
		window = time.Minute
	case "h", "hour":
		window = time.Hour
	default:
		return Rate{}, fmt.Errorf("rate %q has unknown unit %q", s, unit)
	}
	return Rate{Requests: requests, Window: window}, nil
}

// AuthRate returns the parsed AUTH_RATE_LIMIT, falling back to 10/min.
func (c *Config) AuthRate() Rate {
	r, err := ParseRate(c.AuthRateLimit)
	if err != nil {
		return Rate{Requests: 10, Window: time.Minute}
	}
	return r
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
