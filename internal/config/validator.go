package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/harun/triagebot/pkg/triage"
)

var (
	telegramTokenPattern   = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	slackChannelPattern    = regexp.MustCompile(`^[CGD][A-Z0-9]{2,}$`)
	telegramChannelPattern = regexp.MustCompile(`^(-?\d+|@[A-Za-z0-9_]{5,})$`)
	slackReactionPattern   = regexp.MustCompile(`^[a-z0-9_+'-]+$`)
)

// Validator validates configuration values beyond presence checks
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSlackAppToken validates a Slack app-level token (Socket Mode)
func (v *Validator) ValidateSlackAppToken(token string) error {
	if token == "" {
		return fmt.Errorf("slack app token cannot be empty")
	}
	if !strings.HasPrefix(token, "xapp-") {
		return fmt.Errorf("invalid Slack app token format (should start with xapp-)")
	}
	return nil
}

// ValidateSlackBotToken validates a Slack bot token
func (v *Validator) ValidateSlackBotToken(token string) error {
	if token == "" {
		return fmt.Errorf("slack bot token cannot be empty")
	}
	if !strings.HasPrefix(token, "xoxb-") {
		return fmt.Errorf("invalid Slack bot token format (should start with xoxb-)")
	}
	return nil
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// Telegram bot tokens have format: <bot_id>:<token>
	if !telegramTokenPattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateChannelID validates a channel identifier for the given transport
func (v *Validator) ValidateChannelID(id string, transport string) error {
	if id == "" {
		return fmt.Errorf("channel id cannot be empty")
	}

	switch transport {
	case TransportSlack:
		if !slackChannelPattern.MatchString(id) {
			return fmt.Errorf("invalid Slack channel id: %s", id)
		}
	case TransportTelegram:
		if !telegramChannelPattern.MatchString(id) {
			return fmt.Errorf("invalid Telegram chat id: %s", id)
		}
	}

	return nil
}

// ValidateReaction validates the annotation name for the given transport
func (v *Validator) ValidateReaction(reaction string, transport string) error {
	if reaction == "" {
		return fmt.Errorf("reaction cannot be empty")
	}
	if transport == TransportSlack && !slackReactionPattern.MatchString(reaction) {
		return fmt.Errorf("invalid Slack reaction name: %s (use the emoji name without colons)", reaction)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	switch cfg.Transport {
	case TransportSlack:
		if cfg.Slack.AppToken != "" {
			if err := v.ValidateSlackAppToken(cfg.Slack.AppToken); err != nil {
				errs = append(errs, err)
			}
		}
		if cfg.Slack.BotToken != "" {
			if err := v.ValidateSlackBotToken(cfg.Slack.BotToken); err != nil {
				errs = append(errs, err)
			}
		}
	case TransportTelegram:
		if cfg.Telegram.BotToken != "" {
			if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
				errs = append(errs, err)
			}
		}
		if cfg.Telegram.PollTimeout < 0 {
			errs = append(errs, fmt.Errorf("telegram poll_timeout must be >= 0"))
		}
	}

	if cfg.TargetChannelID != "" {
		if err := v.ValidateChannelID(cfg.TargetChannelID, cfg.Transport); err != nil {
			errs = append(errs, fmt.Errorf("target_channel_id: %w", err))
		}
	}
	for i, id := range cfg.ChannelIDs {
		if err := v.ValidateChannelID(id, cfg.Transport); err != nil {
			errs = append(errs, fmt.Errorf("channel_ids[%d]: %w", i, err))
			continue
		}
		// Updates carry numeric chat ids only, so a username would never match
		if cfg.Transport == TransportTelegram && strings.HasPrefix(id, "@") {
			errs = append(errs, fmt.Errorf("channel_ids[%d]: source chats must be numeric ids, got %s", i, id))
		}
	}

	if err := v.ValidateReaction(cfg.Reaction(), cfg.Transport); err != nil {
		errs = append(errs, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// Check runs presence validation and then format validation, returning a single ConfigError
func Check(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if errs := NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return triage.NewConfigError("", errors.Join(errs...))
	}
	return nil
}
