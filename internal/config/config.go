package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAlertTemplate is the message sent to a check owner on a state change
const DefaultAlertTemplate = "Your check for {{.Method}} {{.Protocol}}://{{.URL}} is currently {{.State}}"

// Config holds application configuration
type Config struct {
	Environment  string             `yaml:"environment"`
	DataDir      string             `yaml:"data_dir"`
	Store        StoreConfig        `yaml:"store"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Rotation     RotationConfig     `yaml:"rotation"`
	Probe        ProbeConfig        `yaml:"probe"`
	Notification NotificationConfig `yaml:"notification"`
	HTTP         HTTPConfig         `yaml:"http"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// StoreConfig holds record store configuration
type StoreConfig struct {
	Driver       string `yaml:"driver"` // file, postgres, sqlite
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// SchedulerConfig holds check scheduler configuration
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RotationConfig holds log rotation configuration
type RotationConfig struct {
	Interval time.Duration `yaml:"interval"`
	LogDir   string        `yaml:"log_dir"`
}

// ProbeConfig holds probe executor configuration
type ProbeConfig struct {
	AllowPrivateIPs bool   `yaml:"allow_private_ips"`
	UserAgent       string `yaml:"user_agent"`
}

// NotificationConfig holds alert delivery configuration
type NotificationConfig struct {
	Provider      string        `yaml:"provider"` // log, twilio, webhook
	AlertTemplate string        `yaml:"alert_template"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
	Twilio        TwilioConfig  `yaml:"twilio"`
	Webhook       WebhookConfig `yaml:"webhook"`
}

// TwilioConfig holds Twilio SMS credentials
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromPhone  string `yaml:"from_phone"`
	BaseURL    string `yaml:"base_url"`
}

// WebhookConfig holds webhook delivery settings
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// HTTPConfig holds the operational HTTP server configuration
type HTTPConfig struct {
	Disabled    bool     `yaml:"disabled"`
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	RateLimit   float64  `yaml:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string   `yaml:"level"`
	Format  string   `yaml:"format"` // json, console
	Outputs []string `yaml:"outputs"`
}

// Load loads configuration from the optional file named by CHECKPULSE_CONFIG,
// then applies defaults and environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CHECKPULSE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = getEnv("DATABASE_DSN", cfg.Store.DSN)
	cfg.Store.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Store.MaxOpenConns)
	cfg.Store.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Store.MaxIdleConns)

	cfg.Scheduler.Interval = getEnvDuration("CHECK_INTERVAL", cfg.Scheduler.Interval)
	cfg.Rotation.Interval = getEnvDuration("ROTATION_INTERVAL", cfg.Rotation.Interval)
	cfg.Rotation.LogDir = getEnv("LOG_DIR", cfg.Rotation.LogDir)

	cfg.Probe.AllowPrivateIPs = getEnvBool("ALLOW_PRIVATE_IPS", cfg.Probe.AllowPrivateIPs)

	cfg.Notification.Provider = getEnv("NOTIFICATION_PROVIDER", cfg.Notification.Provider)
	cfg.Notification.AlertTemplate = getEnv("ALERT_TEMPLATE", cfg.Notification.AlertTemplate)
	cfg.Notification.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", cfg.Notification.Twilio.AccountSID)
	cfg.Notification.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", cfg.Notification.Twilio.AuthToken)
	cfg.Notification.Twilio.FromPhone = getEnv("TWILIO_FROM_PHONE", cfg.Notification.Twilio.FromPhone)
	cfg.Notification.Webhook.URL = getEnv("WEBHOOK_URL", cfg.Notification.Webhook.URL)

	cfg.HTTP.Disabled = getEnvBool("HTTP_DISABLED", cfg.HTTP.Disabled)
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.HTTP.CORSOrigins = splitAndTrim(origins, ",")
	}

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = ".data"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "file"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = filepath.Join(cfg.DataDir, "checkpulse.db")
	}
	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = 25
	}
	if cfg.Store.MaxIdleConns == 0 {
		cfg.Store.MaxIdleConns = 5
	}

	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 60 * time.Second
	}
	if cfg.Rotation.Interval == 0 {
		cfg.Rotation.Interval = 24 * time.Hour
	}
	if cfg.Rotation.LogDir == "" {
		cfg.Rotation.LogDir = filepath.Join(cfg.DataDir, ".logs")
	}

	if cfg.Probe.UserAgent == "" {
		cfg.Probe.UserAgent = "checkpulse/1.0"
	}

	if cfg.Notification.Provider == "" {
		cfg.Notification.Provider = "log"
	}
	if cfg.Notification.AlertTemplate == "" {
		cfg.Notification.AlertTemplate = DefaultAlertTemplate
	}
	if cfg.Notification.RatePerSecond == 0 {
		cfg.Notification.RatePerSecond = 1
	}
	if cfg.Notification.Burst == 0 {
		cfg.Notification.Burst = 5
	}
	if cfg.Notification.SendTimeout == 0 {
		cfg.Notification.SendTimeout = 10 * time.Second
	}
	if cfg.Notification.Twilio.BaseURL == "" {
		cfg.Notification.Twilio.BaseURL = "https://api.twilio.com"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	if cfg.HTTP.RateLimit == 0 {
		cfg.HTTP.RateLimit = 10
	}
	if cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
		if cfg.Environment == "development" {
			cfg.Logging.Format = "console"
		}
	}
	if len(cfg.Logging.Outputs) == 0 {
		cfg.Logging.Outputs = []string{"stdout"}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}

	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("scheduler.interval must be at least 1s")
	}
	if c.Rotation.Interval < time.Minute {
		return fmt.Errorf("rotation.interval must be at least 1m")
	}

	if _, err := template.New("alert").Parse(c.Notification.AlertTemplate); err != nil {
		return fmt.Errorf("notification.alert_template is invalid: %w", err)
	}

	switch c.Notification.Provider {
	case "log":
	case "twilio":
		t := c.Notification.Twilio
		if t.AccountSID == "" || t.AuthToken == "" || t.FromPhone == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_PHONE are required for the twilio provider")
		}
	case "webhook":
		if c.Notification.Webhook.URL == "" {
			return fmt.Errorf("WEBHOOK_URL is required for the webhook provider")
		}
	default:
		return fmt.Errorf("unsupported notification provider: %s", c.Notification.Provider)
	}

	if c.Notification.RatePerSecond < 0 {
		return fmt.Errorf("notification.rate_per_second must not be negative")
	}

	return nil
}

func splitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
