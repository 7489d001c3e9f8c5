package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that set them
var envBindings = map[string][]string{
	"transport":             {"TRIAGEBOT_TRANSPORT"},
	"slack.app_token":       {"APP_TOKEN", "SLACK_APP_TOKEN"},
	"slack.bot_token":       {"BOT_TOKEN", "SLACK_BOT_TOKEN"},
	"slack.reaction":        {"TRIAGEBOT_SLACK_REACTION"},
	"slack.debug":           {"TRIAGEBOT_SLACK_DEBUG"},
	"slack.api_url":         {"TRIAGEBOT_SLACK_API_URL"},
	"telegram.bot_token":    {"TELEGRAM_BOT_TOKEN"},
	"telegram.reaction":     {"TRIAGEBOT_TELEGRAM_REACTION"},
	"telegram.poll_timeout": {"TRIAGEBOT_TELEGRAM_POLL_TIMEOUT"},
	"telegram.api_endpoint": {"TRIAGEBOT_TELEGRAM_API_ENDPOINT"},
	"target_channel_id":     {"TARGET_CHANNEL_ID"},
	"channel_ids":           {"CHANNEL_IDS"},
	"patterns_file":         {"PATTERNS_FILE"},
	"logging.level":         {"TRIAGEBOT_LOG_LEVEL"},
	"logging.file":          {"TRIAGEBOT_LOG_FILE"},
	"logging.max_size":      {"TRIAGEBOT_LOG_MAX_SIZE"},
	"logging.max_age":       {"TRIAGEBOT_LOG_MAX_AGE"},
	"logging.compress":      {"TRIAGEBOT_LOG_COMPRESS"},
	"logging.redaction":     {"TRIAGEBOT_LOG_REDACTION"},
	"logging.pretty":        {"TRIAGEBOT_LOG_PRETTY"},
	"metrics.listen_addr":   {"TRIAGEBOT_METRICS_ADDR"},
	"pid_file":              {"TRIAGEBOT_PID_FILE"},

	"transport_options.request_timeout_seconds": {"TRIAGEBOT_REQUEST_TIMEOUT"},
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path means environment only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads defaults, then the optional config file, then the environment (highest precedence)
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if l.configPath != "" {
		if _, err := os.Stat(l.configPath); err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		v.SetConfigFile(l.configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	cfg.TargetChannelID = strings.TrimSpace(cfg.TargetChannelID)
	cfg.ChannelIDs = SplitChannelIDs(cfg.ChannelIDs)

	return cfg, nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	return l.configPath
}

// SplitChannelIDs flattens comma-delimited entries, trims them and drops empties
func SplitChannelIDs(raw []string) []string {
	var ids []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if id := strings.TrimSpace(part); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("transport", cfg.Transport)
	v.SetDefault("slack.reaction", cfg.Slack.Reaction)
	v.SetDefault("slack.debug", cfg.Slack.Debug)
	v.SetDefault("telegram.reaction", cfg.Telegram.Reaction)
	v.SetDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	v.SetDefault("patterns_file", cfg.PatternsFile)
	v.SetDefault("transport_options.request_timeout_seconds", cfg.TransportOptions.RequestTimeoutSeconds)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
