package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	SinkSheets   = "sheets"
	SinkPostgres = "postgres"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Port     string `mapstructure:"PORT"`

	TelegramBotToken      string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL        string `mapstructure:"TELEGRAM_API_URL"`
	TelegramMode          string `mapstructure:"TELEGRAM_MODE"`
	TelegramWebhookURL    string `mapstructure:"TELEGRAM_WEBHOOK_URL"`
	TelegramWebhookSecret string `mapstructure:"TELEGRAM_WEBHOOK_SECRET"`
	PollTimeoutSeconds    int    `mapstructure:"POLL_TIMEOUT_SECONDS"`

	Sink                    string `mapstructure:"SINK"`
	SpreadsheetID           string `mapstructure:"SPREADSHEET_ID"`
	SheetName               string `mapstructure:"SHEET_NAME"`
	GoogleCredentialsFile   string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	GoogleCredentialsBase64 string `mapstructure:"GOOGLE_CREDENTIALS_BASE64"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	Timezone      string `mapstructure:"TIMEZONE"`
	ArchiveChatID int64  `mapstructure:"ARCHIVE_CHAT_ID"`
	PDFFontPath   string `mapstructure:"PDF_FONT_PATH"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "PORT",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_API_URL", "TELEGRAM_MODE",
	"TELEGRAM_WEBHOOK_URL", "TELEGRAM_WEBHOOK_SECRET", "POLL_TIMEOUT_SECONDS",
	"SINK", "SPREADSHEET_ID", "SHEET_NAME",
	"GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CREDENTIALS_BASE64",
	"DATABASE_URL", "MIGRATIONS_DIR",
	"TIMEZONE", "ARCHIVE_CHAT_ID", "PDF_FONT_PATH",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8080")
	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	v.SetDefault("TELEGRAM_MODE", ModePolling)
	v.SetDefault("POLL_TIMEOUT_SECONDS", 30)
	v.SetDefault("SINK", SinkSheets)
	v.SetDefault("SHEET_NAME", "Sheet1")
	v.SetDefault("MIGRATIONS_DIR", "file://migrations")
	v.SetDefault("TIMEZONE", "Asia/Jakarta")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.TelegramMode = strings.ToLower(strings.TrimSpace(cfg.TelegramMode))
	cfg.Sink = strings.ToLower(strings.TrimSpace(cfg.Sink))
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings needed to serve. Storage settings are only
// required for the selected sink.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	switch c.TelegramMode {
	case ModePolling:
	case ModeWebhook:
		if c.TelegramWebhookURL == "" {
			return fmt.Errorf("TELEGRAM_WEBHOOK_URL is required when TELEGRAM_MODE is %q", ModeWebhook)
		}
	default:
		return fmt.Errorf("TELEGRAM_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, c.TelegramMode)
	}
	if err := c.ValidateSink(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// ValidateSink checks only the storage settings.
func (c *Config) ValidateSink() error {
	switch c.Sink {
	case SinkSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("SPREADSHEET_ID is required when SINK is %q", SinkSheets)
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsBase64 == "" {
			return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS_BASE64 is required when SINK is %q", SinkSheets)
		}
		if _, err := c.GoogleCredentialsJSON(); err != nil {
			return err
		}
	case SinkPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SINK is %q", SinkPostgres)
		}
	default:
		return fmt.Errorf("SINK must be %q or %q, got %q", SinkSheets, SinkPostgres, c.Sink)
	}
	return nil
}

// GoogleCredentialsJSON decodes GOOGLE_CREDENTIALS_BASE64. It returns nil
// when the variable is unset.
func (c *Config) GoogleCredentialsJSON() ([]byte, error) {
	if c.GoogleCredentialsBase64 == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(c.GoogleCredentialsBase64)
	if strings.HasPrefix(raw, "{") {
		return []byte(raw), nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("GOOGLE_CREDENTIALS_BASE64 is not valid base64: %w", err)
	}
	return b, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) PollTimeout() time.Duration {
	if c.PollTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}
