package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/triagebot/pkg/patterns"
	"github.com/harun/triagebot/pkg/triage"
)

// Supported transports
const (
	TransportSlack    = "slack"
	TransportTelegram = "telegram"
)

// Config represents the triagebot configuration
type Config struct {
	// Transport selects the chat platform: slack or telegram
	Transport string `json:"transport" mapstructure:"transport"`

	// Slack
	Slack SlackConfig `json:"slack" mapstructure:"slack"`

	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Target channel receiving forwarded messages
	TargetChannelID string `json:"target_channel_id" mapstructure:"target_channel_id"`

	// Monitored source channels
	ChannelIDs []string `json:"channel_ids" mapstructure:"channel_ids"`

	// Pattern document path
	PatternsFile string `json:"patterns_file" mapstructure:"patterns_file"`

	// Outbound call settings
	TransportOptions TransportOptions `json:"transport_options" mapstructure:"transport_options"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// PID file written while running, empty disables it
	PIDFile string `json:"pid_file,omitempty" mapstructure:"pid_file"`
}

// SlackConfig holds Slack app credentials
type SlackConfig struct {
	AppToken string `json:"app_token" mapstructure:"app_token"`
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
	Reaction string `json:"reaction" mapstructure:"reaction"`
	Debug    bool   `json:"debug" mapstructure:"debug"`

	// APIURL overrides the Web API base URL, e.g. for a proxy
	APIURL string `json:"api_url,omitempty" mapstructure:"api_url"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken    string `json:"bot_token" mapstructure:"bot_token"`
	Reaction    string `json:"reaction" mapstructure:"reaction"`
	PollTimeout int    `json:"poll_timeout" mapstructure:"poll_timeout"` // seconds

	// APIEndpoint points at a local Bot API server, format "http://host/bot%s/%s"
	APIEndpoint string `json:"api_endpoint,omitempty" mapstructure:"api_endpoint"`
}

// TransportOptions controls outbound platform calls
type TransportOptions struct {
	RequestTimeoutSeconds int `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds metrics exposition settings. An empty address disables the listener.
type MetricsConfig struct {
	ListenAddr string `json:"listen_addr" mapstructure:"listen_addr"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportSlack,
		Slack: SlackConfig{
			Reaction: triage.DefaultReaction,
		},
		Telegram: TelegramConfig{
			Reaction:    "👌",
			PollTimeout: 60,
		},
		PatternsFile: patterns.DefaultPath,
		TransportOptions: TransportOptions{
			RequestTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      "/appz/log/slackbot.log",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Pretty:    false,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.Slack.AppToken = maskSecret(c.Slack.AppToken)
	masked.Slack.BotToken = maskSecret(c.Slack.BotToken)
	masked.Telegram.BotToken = maskSecret(c.Telegram.BotToken)
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks that every required value is present. Any failure is a ConfigError.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSlack:
		if c.Slack.AppToken == "" {
			return triage.NewConfigError("slack.app_token", fmt.Errorf("APP_TOKEN not found in env"))
		}
		if c.Slack.BotToken == "" {
			return triage.NewConfigError("slack.bot_token", fmt.Errorf("BOT_TOKEN not found in env"))
		}
	case TransportTelegram:
		if c.Telegram.BotToken == "" {
			return triage.NewConfigError("telegram.bot_token", fmt.Errorf("TELEGRAM_BOT_TOKEN not found in env"))
		}
	default:
		return triage.NewConfigError("transport", fmt.Errorf("unsupported transport %q (must be: slack, telegram)", c.Transport))
	}

	if strings.TrimSpace(c.TargetChannelID) == "" {
		return triage.NewConfigError("target_channel_id", fmt.Errorf("TARGET_CHANNEL_ID not found in env"))
	}

	if len(c.ChannelIDs) == 0 {
		return triage.NewConfigError("channel_ids", fmt.Errorf("CHANNEL_IDS not found in env"))
	}

	for _, id := range c.ChannelIDs {
		if id == strings.TrimSpace(c.TargetChannelID) {
			return triage.NewConfigError("channel_ids", fmt.Errorf("%w: %s", triage.ErrTargetIsSource, id))
		}
	}

	if strings.TrimSpace(c.PatternsFile) == "" {
		return triage.NewConfigError("patterns_file", fmt.Errorf("pattern file path is required"))
	}

	if c.TransportOptions.RequestTimeoutSeconds <= 0 {
		return triage.NewConfigError("transport_options.request_timeout_seconds", fmt.Errorf("must be positive, got %d", c.TransportOptions.RequestTimeoutSeconds))
	}

	return nil
}

// Reaction returns the annotation configured for the selected transport
func (c *Config) Reaction() string {
	if c.Transport == TransportTelegram {
		return c.Telegram.Reaction
	}
	return c.Slack.Reaction
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}
