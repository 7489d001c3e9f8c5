package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/triagebot/internal/config"
	"github.com/harun/triagebot/internal/logger"
	"github.com/harun/triagebot/pkg/triage"
	"github.com/rs/zerolog"
)

// Name is the transport name used in logs and metrics
const Name = "telegram"

// maxCallbackData is Telegram's limit for inline button callback data
const maxCallbackData = 64

// Bot is the Telegram transport. It long-polls updates and calls the Bot API.
type Bot struct {
	api    *tgbotapi.BotAPI
	config *config.TelegramConfig
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Telegram transport and authenticates the token with getMe
func New(cfg *config.TelegramConfig, opts config.TransportOptions, log *logger.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram config is required")
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	callTimeout := time.Duration(opts.RequestTimeoutSeconds) * time.Second
	client := &splitTimeoutClient{
		poll: &http.Client{Timeout: time.Duration(cfg.PollTimeout)*time.Second + callTimeout},
		call: &http.Client{Timeout: callTimeout},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := &Bot{
		api:    api,
		config: cfg,
		logger: log.Component(Name),
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// Name returns the transport name
func (b *Bot) Name() string {
	return Name
}

// Run long-polls updates and dispatches them to h until ctx is canceled
func (b *Bot) Run(ctx context.Context, h triage.Handlers) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot is already running")
	}
	b.running = true
	b.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.PollTimeout
	u.AllowedUpdates = []string{"message", "channel_post", "callback_query"}

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info().Int("poll_timeout", u.Timeout).Msg("Telegram bot started")

	defer func() {
		b.api.StopReceivingUpdates()
		b.logger.Info().Msg("Telegram bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update, h)
		}
	}
}

// ProbeChannel checks that the bot can see the chat
func (b *Bot) ProbeChannel(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatCfg, err := chatConfig(channelID)
	if err != nil {
		return err
	}

	chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: chatCfg})
	if err != nil {
		return fmt.Errorf("failed to get chat %s: %w", channelID, err)
	}

	b.logger.Debug().
		Str("chat", channelID).
		Str("title", chat.Title).
		Str("type", chat.Type).
		Msg("Chat reachable")

	return nil
}

// SendArtifact posts the forwarded text with one inline button carrying the original reference
func (b *Bot) SendArtifact(ctx context.Context, artifact triage.ForwardedArtifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data := callbackData(artifact.ControlID, artifact.Reference)
	if len(data) > maxCallbackData {
		return "", fmt.Errorf("callback data for %s exceeds %d bytes", artifact.Reference, maxCallbackData)
	}

	msg, err := newMessage(artifact.TargetChannel, artifact.Text)
	if err != nil {
		return "", err
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(artifact.ControlLabel, data),
		),
	)

	sent, err := b.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	b.logger.Debug().
		Str("chat", artifact.TargetChannel).
		Int("message_id", sent.MessageID).
		Str("forward_id", artifact.ID).
		Msg("Message sent")

	return strconv.Itoa(sent.MessageID), nil
}

type reactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// AddReaction sets a single emoji reaction on the message
func (b *Bot) AddReaction(ctx context.Context, channel, timestamp, reaction string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal([]reactionType{{Type: "emoji", Emoji: reaction}})
	if err != nil {
		return fmt.Errorf("failed to encode reaction: %w", err)
	}

	params := tgbotapi.Params{}
	params.AddNonEmpty("chat_id", channel)
	params.AddNonEmpty("message_id", timestamp)
	params.AddNonEmpty("reaction", string(payload))

	if _, err := b.api.MakeRequest("setMessageReaction", params); err != nil {
		return fmt.Errorf("failed to set reaction: %w", err)
	}

	return nil
}

// AckInteraction answers the callback query so the client stops its spinner
func (b *Bot) AckInteraction(ctx context.Context, interactionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(interactionID, "")); err != nil {
		return fmt.Errorf("failed to answer callback query: %w", err)
	}

	return nil
}

// GetAPI returns the underlying bot API
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}

// IsRunning returns whether Run has been called
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// chatConfig accepts a numeric chat id or an @username
func chatConfig(channelID string) (tgbotapi.ChatConfig, error) {
	if strings.HasPrefix(channelID, "@") {
		return tgbotapi.ChatConfig{SuperGroupUsername: channelID}, nil
	}
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return tgbotapi.ChatConfig{}, fmt.Errorf("invalid chat id %q: %w", channelID, err)
	}
	return tgbotapi.ChatConfig{ChatID: id}, nil
}

func newMessage(channelID, text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(channelID, "@") {
		return tgbotapi.NewMessageToChannel(channelID, text), nil
	}
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid chat id %q: %w", channelID, err)
	}
	return tgbotapi.NewMessage(id, text), nil
}

// splitTimeoutClient gives long-poll requests a longer timeout than regular calls
type splitTimeoutClient struct {
	poll *http.Client
	call *http.Client
}

func (c *splitTimeoutClient) Do(req *http.Request) (*http.Response, error) {
	if strings.HasSuffix(req.URL.Path, "/getUpdates") {
		return c.poll.Do(req)
	}
	return c.call.Do(req)
}
