package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// envBindings maps keys onto the variable names existing deployments already use
var envBindings = map[string]string{
	"google.client_id":        "GOOGLE_OAUTH_CLIENT_ID",
	"google.client_secret":    "GOOGLE_OAUTH_CLIENT_SECRET",
	"server.ingest_secret":    "APPS_SCRIPT_SECRET",
	"notify.ntfy.topic":       "NTFY_TOPIC",
	"notify.telegram.token":   "TELEGRAM_BOT_TOKEN",
	"notify.telegram.chat_id": "TELEGRAM_CHAT_ID",
	"store.redis_url":         "REDIS_URL",
	"store.postgres_dsn":      "DATABASE_URL",
}

// New creates a new configuration instance. A .env file in the working
// directory is loaded first when present.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/deadline-triage/")
	v.AddConfigPath("$HOME/.deadline-triage")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile loads configuration from an explicit path. Unlike New, a
// missing file is an error.
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// bindEnv accepts both TRIAGE_<KEY> and the legacy names for bound keys
func bindEnv(v *viper.Viper) error {
	for key, legacy := range envBindings {
		prefixed := "TRIAGE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// HTTP server defaults
	v.SetDefault("server.listen_address", "0.0.0.0:8000")
	v.SetDefault("server.ingest_secret", "")
	v.SetDefault("server.allow_origins", "*")
	v.SetDefault("server.body_limit", 4*1024*1024)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Mail source defaults
	v.SetDefault("mail.provider", "gmail")
	v.SetDefault("mail.max_results", 50)
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("imap.address", "imap.gmail.com:993")
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.auth", "oauthbearer")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.timeout", "30s")

	// Classifier store defaults
	v.SetDefault("store.type", "file")
	v.SetDefault("store.dir", "user_models")
	v.SetDefault("store.sqlite_path", "/data/classifiers.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/deadline_triage")
	v.SetDefault("store.postgres_dsn", "postgres://localhost:5432/deadline_triage?sslmode=disable")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.redis_prefix", "triage:classifier:")
	v.SetDefault("classifier.alpha", 1e-4)
	v.SetDefault("classifier.n_features", 1<<20)
	v.SetDefault("classifier.max_input_bytes", 64*1024)

	// Extraction defaults
	v.SetDefault("deadline.scan_limit", 4000)
	v.SetDefault("deadline.min_lead", "30m")
	v.SetDefault("deadline.max_lead", "8760h")

	// Reminder defaults
	v.SetDefault("reminder.lead", "2h")
	v.SetDefault("reminder.min_delay", "5s")
	v.SetDefault("reminder.notify_timeout", "10s")
	v.SetDefault("reminder.skip_unresolved", false)
	v.SetDefault("reminder.title", "Upcoming Deadline!")
	v.SetDefault("reminder.priority", "high")
	v.SetDefault("reminder.deep_link_format", "googlegmail:///v1/account/me/thread/%s")
	v.SetDefault("reminder.timezone", "Local")

	// Notification defaults
	v.SetDefault("notify.types", []string{"ntfy"})
	v.SetDefault("notify.ntfy.server", "https://ntfy.sh")
	v.SetDefault("notify.ntfy.topic", "glassify")
	v.SetDefault("notify.ntfy.token", "")
	v.SetDefault("notify.ntfy.timeout", "10s")
	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", 0)

	// Safeguard defaults; empty means the built-in list
	v.SetDefault("safeguard.keywords", []string{})

	// SMTP ingest defaults
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("smtp.domain", "localhost")
	v.SetDefault("smtp.default_owner", "")
	v.SetDefault("smtp.max_message_bytes", 10*1024*1024)
	v.SetDefault("smtp.timeout", "30s")

	// Apps Script ingest defaults
	v.SetDefault("ingest.sender", "AppScript Ingest")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", []string{"stderr"})
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
