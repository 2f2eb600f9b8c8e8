package config

import (
	"fmt"
	"time"
)

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	ListenAddress   string
	IngestSecret    string
	AllowOrigins    string
	BodyLimit       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// MailConfig represents the mail source configuration
type MailConfig struct {
	Provider   string
	MaxResults int
}

// GoogleConfig represents the Google OAuth client configuration
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// IMAPConfig represents the IMAP source configuration
type IMAPConfig struct {
	Address  string
	Username string
	Mailbox  string
	Auth     string
	TLS      bool
	Timeout  time.Duration
}

// StoreConfig represents the classifier store configuration
type StoreConfig struct {
	Type        string
	Dir         string
	SQLitePath  string
	MySQLDSN    string
	PostgresDSN string
	RedisURL    string
	RedisPrefix string
}

// ClassifierConfig represents the online model configuration
type ClassifierConfig struct {
	Alpha         float64
	Dimensions    uint32
	MaxInputBytes int
}

// DeadlineConfig represents the deadline extractor configuration
type DeadlineConfig struct {
	ScanLimit int
	MinLead   time.Duration
	MaxLead   time.Duration
}

// ReminderConfig represents the reminder scheduler configuration
type ReminderConfig struct {
	Lead           time.Duration
	MinDelay       time.Duration
	NotifyTimeout  time.Duration
	SkipUnresolved bool
	Title          string
	Priority       string
	DeepLinkFormat string
	Location       *time.Location
}

// NotifyConfig represents the notification sink configuration
type NotifyConfig struct {
	Types          []string
	NtfyServer     string
	NtfyTopic      string
	NtfyToken      string
	NtfyTimeout    time.Duration
	TelegramToken  string
	TelegramChatID int64
}

// SMTPConfig represents the SMTP ingest configuration
type SMTPConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	DefaultOwner    string
	MaxMessageBytes int64
	Timeout         time.Duration
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	cfg := ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
		IngestSecret:  c.GetString("server.ingest_secret"),
		AllowOrigins:  c.GetString("server.allow_origins"),
		BodyLimit:     c.GetInt("server.body_limit"),
	}
	var err error
	if cfg.ReadTimeout, err = c.GetDuration("server.read_timeout"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = c.GetDuration("server.write_timeout"); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = c.GetDuration("server.shutdown_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetMail returns the mail source configuration
func (c *Config) GetMail() MailConfig {
	return MailConfig{
		Provider:   c.GetString("mail.provider"),
		MaxResults: c.GetInt("mail.max_results"),
	}
}

// GetGoogle returns the Google OAuth client configuration
func (c *Config) GetGoogle() GoogleConfig {
	return GoogleConfig{
		ClientID:     c.GetString("google.client_id"),
		ClientSecret: c.GetString("google.client_secret"),
	}
}

// GetIMAP returns the IMAP source configuration
func (c *Config) GetIMAP() (IMAPConfig, error) {
	timeout, err := c.GetDuration("imap.timeout")
	if err != nil {
		return IMAPConfig{}, err
	}
	return IMAPConfig{
		Address:  c.GetString("imap.address"),
		Username: c.GetString("imap.username"),
		Mailbox:  c.GetString("imap.mailbox"),
		Auth:     c.GetString("imap.auth"),
		TLS:      c.GetBool("imap.tls"),
		Timeout:  timeout,
	}, nil
}

// GetStore returns the classifier store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:        c.GetString("store.type"),
		Dir:         c.GetString("store.dir"),
		SQLitePath:  c.GetString("store.sqlite_path"),
		MySQLDSN:    c.GetString("store.mysql_dsn"),
		PostgresDSN: c.GetString("store.postgres_dsn"),
		RedisURL:    c.GetString("store.redis_url"),
		RedisPrefix: c.GetString("store.redis_prefix"),
	}
}

// GetClassifier returns the online model configuration
func (c *Config) GetClassifier() (ClassifierConfig, error) {
	alpha := c.GetFloat64("classifier.alpha")
	if alpha <= 0 {
		return ClassifierConfig{}, fmt.Errorf("classifier.alpha must be positive, got %v", alpha)
	}
	dims := c.GetInt64("classifier.n_features")
	if dims <= 0 || dims > 1<<31 {
		return ClassifierConfig{}, fmt.Errorf("classifier.n_features out of range: %d", dims)
	}
	maxInput := c.GetInt("classifier.max_input_bytes")
	if maxInput < 0 {
		return ClassifierConfig{}, fmt.Errorf("classifier.max_input_bytes must not be negative, got %d", maxInput)
	}
	return ClassifierConfig{Alpha: alpha, Dimensions: uint32(dims), MaxInputBytes: maxInput}, nil
}

// GetDeadline returns the deadline extractor configuration
func (c *Config) GetDeadline() (DeadlineConfig, error) {
	cfg := DeadlineConfig{ScanLimit: c.GetInt("deadline.scan_limit")}
	var err error
	if cfg.MinLead, err = c.GetDuration("deadline.min_lead"); err != nil {
		return cfg, err
	}
	if cfg.MaxLead, err = c.GetDuration("deadline.max_lead"); err != nil {
		return cfg, err
	}
	if cfg.MaxLead <= cfg.MinLead {
		return cfg, fmt.Errorf("deadline.max_lead (%s) must exceed deadline.min_lead (%s)", cfg.MaxLead, cfg.MinLead)
	}
	return cfg, nil
}

// GetReminder returns the reminder scheduler configuration
func (c *Config) GetReminder() (ReminderConfig, error) {
	cfg := ReminderConfig{
		SkipUnresolved: c.GetBool("reminder.skip_unresolved"),
		Title:          c.GetString("reminder.title"),
		Priority:       c.GetString("reminder.priority"),
		DeepLinkFormat: c.GetString("reminder.deep_link_format"),
	}
	var err error
	if cfg.Lead, err = c.GetDuration("reminder.lead"); err != nil {
		return cfg, err
	}
	if cfg.MinDelay, err = c.GetDuration("reminder.min_delay"); err != nil {
		return cfg, err
	}
	if cfg.NotifyTimeout, err = c.GetDuration("reminder.notify_timeout"); err != nil {
		return cfg, err
	}
	if cfg.Location, err = time.LoadLocation(c.GetString("reminder.timezone")); err != nil {
		return cfg, fmt.Errorf("invalid reminder.timezone: %w", err)
	}
	return cfg, nil
}

// GetNotify returns the notification sink configuration
func (c *Config) GetNotify() (NotifyConfig, error) {
	timeout, err := c.GetDuration("notify.ntfy.timeout")
	if err != nil {
		return NotifyConfig{}, err
	}
	return NotifyConfig{
		Types:          c.GetStringSlice("notify.types"),
		NtfyServer:     c.GetString("notify.ntfy.server"),
		NtfyTopic:      c.GetString("notify.ntfy.topic"),
		NtfyToken:      c.GetString("notify.ntfy.token"),
		NtfyTimeout:    timeout,
		TelegramToken:  c.GetString("notify.telegram.token"),
		TelegramChatID: c.GetInt64("notify.telegram.chat_id"),
	}, nil
}

// GetSMTP returns the SMTP ingest configuration
func (c *Config) GetSMTP() (SMTPConfig, error) {
	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		return SMTPConfig{}, err
	}
	return SMTPConfig{
		Enabled:         c.GetBool("smtp.enabled"),
		ListenAddress:   c.GetString("smtp.listen_address"),
		Domain:          c.GetString("smtp.domain"),
		DefaultOwner:    c.GetString("smtp.default_owner"),
		MaxMessageBytes: c.GetInt64("smtp.max_message_bytes"),
		Timeout:         timeout,
	}, nil
}
