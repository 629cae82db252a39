package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath        = "FETCHBOT_CONFIG"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	defaultGatewayPort   = 8443
	defaultTimeoutSecs   = 300
	defaultDelayMillis   = 1000
	defaultMaxUploadSize = 5 << 20
)

// Config is the root runtime configuration.
type Config struct {
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Download DownloadConfig `json:"download" yaml:"download"`
	Gateway  GatewayConfig  `json:"gateway"  yaml:"gateway"`
	Logging  LoggingConfig  `json:"logging"  yaml:"logging"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `env:"FETCHBOT_LOG_FORMAT"     json:"format,omitempty"     yaml:"format,omitempty"`
	Level     string `env:"FETCHBOT_LOG_LEVEL"      json:"level,omitempty"      yaml:"level,omitempty"`
	AddSource bool   `env:"FETCHBOT_LOG_ADD_SOURCE" json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
//
// Without a webhook URL the adapter falls back to long polling.
type TelegramConfig struct {
	Enabled       bool     `env:"TELEGRAM_ENABLED"                     json:"enabled"                  yaml:"enabled"`
	Token         string   `env:"BOT_TOKEN"                            json:"token"                    yaml:"token"`
	WebhookURL    string   `env:"WEBHOOK_URL"                          json:"webhook_url,omitempty"    yaml:"webhook_url,omitempty"`
	WebhookSecret string   `env:"WEBHOOK_SECRET"                       json:"webhook_secret,omitempty" yaml:"webhook_secret,omitempty"`
	AllowFrom     []string `env:"TELEGRAM_ALLOW_FROM" envSeparator:"," json:"allow_from,omitempty"     yaml:"allow_from,omitempty"`
}

// DownloadConfig tunes link filtering and the download loop.
type DownloadConfig struct {
	Root           string   `env:"DOWNLOAD_ROOT"                               json:"root,omitempty"             yaml:"root,omitempty"`
	TimeoutSeconds int      `env:"DOWNLOAD_TIMEOUT_SECONDS"                    json:"timeout_seconds,omitempty"  yaml:"timeout_seconds,omitempty"`
	DelayMillis    int      `env:"DOWNLOAD_DELAY_MS"                           json:"delay_ms,omitempty"         yaml:"delay_ms,omitempty"`
	UserAgent      string   `env:"DOWNLOAD_USER_AGENT"                         json:"user_agent,omitempty"       yaml:"user_agent,omitempty"`
	Extensions     []string `env:"DOWNLOAD_EXTENSIONS"     envSeparator:","    json:"extensions,omitempty"       yaml:"extensions,omitempty"`
	TrustedDomains []string `env:"TRUSTED_DOMAINS"         envSeparator:","    json:"trusted_domains,omitempty"  yaml:"trusted_domains,omitempty"`
	MaxUploadBytes int64    `env:"DOWNLOAD_MAX_UPLOAD_BYTES"                   json:"max_upload_bytes,omitempty" yaml:"max_upload_bytes,omitempty"`
}

// GatewayConfig configures the HTTP listener shared by health checks and the webhook.
type GatewayConfig struct {
	Host string `env:"HOST" json:"host" yaml:"host"`
	Port int    `env:"PORT" json:"port" yaml:"port"`
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{Enabled: true},
		},
		Download: DownloadConfig{
			TimeoutSeconds: defaultTimeoutSecs,
			DelayMillis:    defaultDelayMillis,
			MaxUploadBytes: defaultMaxUploadSize,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: defaultGatewayPort,
		},
	}
}

// Timeout returns the per-request download timeout.
func (d DownloadConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return defaultTimeoutSecs * time.Second
	}

	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Delay returns the pause between downloads. Negative delay_ms disables it.
func (d DownloadConfig) Delay() time.Duration {
	if d.DelayMillis < 0 {
		return 0
	}
	if d.DelayMillis == 0 {
		return defaultDelayMillis * time.Millisecond
	}

	return time.Duration(d.DelayMillis) * time.Millisecond
}

// UploadLimit returns the largest accepted link file in bytes.
func (d DownloadConfig) UploadLimit() int64 {
	if d.MaxUploadBytes <= 0 {
		return defaultMaxUploadSize
	}

	return d.MaxUploadBytes
}

// UsesWebhook reports whether Telegram updates arrive via webhook instead of polling.
func (t TelegramConfig) UsesWebhook() bool {
	return strings.TrimSpace(t.WebhookURL) != ""
}

// LoadConfig reads the optional config file, then applies environment overrides.
//
// A missing file is not an error; defaults plus environment are enough to run.
func LoadConfig() (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := loadFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings required to run the bot.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	telegram := c.Channels.Telegram
	if telegram.Enabled && strings.TrimSpace(telegram.Token) == "" {
		return errors.New("channels.telegram.token is required (set BOT_TOKEN)")
	}

	if telegram.UsesWebhook() {
		parsed, err := url.Parse(strings.TrimSpace(telegram.WebhookURL))
		if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
			return fmt.Errorf("channels.telegram.webhook_url is not a valid URL: %q", telegram.WebhookURL)
		}
	}

	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port out of range: %d", c.Gateway.Port)
	}

	return nil
}

func loadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	}

	return nil
}

// applyEnvOverrides injects env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if strings.TrimSpace(cfg.Channels.Telegram.Token) == "" {
		cfg.Channels.Telegram.Token = strings.TrimSpace(os.Getenv(envTelegramBotToken))
	}

	cfg.Channels.Telegram.AllowFrom = compact(cfg.Channels.Telegram.AllowFrom)
	cfg.Download.Extensions = compact(cfg.Download.Extensions)
	cfg.Download.TrustedDomains = compact(cfg.Download.TrustedDomains)

	return nil
}

// compact trims values and drops empty entries.
func compact(values []string) []string {
	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	if len(clean) == 0 {
		return nil
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// FETCHBOT_CONFIG must point at a file when set; otherwise cwd-local
// candidates are tried and an empty path means none exist.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config.yml"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
