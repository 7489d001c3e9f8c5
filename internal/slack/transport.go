package slack

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"sync"
	"time"

	"github.com/harun/triagebot/internal/config"
	"github.com/harun/triagebot/internal/logger"
	"github.com/harun/triagebot/pkg/triage"
	"github.com/rs/zerolog"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// Name is the transport name used in logs and metrics
const Name = "slack"

const errAlreadyReacted = "already_reacted"

// socketClient is the part of socketmode.Client the transport drives
type socketClient interface {
	RunContext(ctx context.Context) error
	AckCtx(ctx context.Context, reqID string, payload interface{}) error
}

// Transport connects over Socket Mode for events and uses the Web API for calls
type Transport struct {
	api    *slackapi.Client
	socket socketClient
	events <-chan socketmode.Event
	config *config.SlackConfig
	logger zerolog.Logger

	ackTimeout time.Duration

	mu      sync.Mutex
	running bool
}

// New creates a Slack transport. No connection is opened until Run.
func New(cfg *config.SlackConfig, opts config.TransportOptions, log *logger.Logger) (*Transport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("slack config is required")
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("app token is required")
	}

	l := log.Component(Name)
	sdkLog := stdlog.New(l, "", 0)

	apiOpts := []slackapi.Option{
		slackapi.OptionAppLevelToken(cfg.AppToken),
		slackapi.OptionDebug(cfg.Debug),
		slackapi.OptionLog(sdkLog),
	}
	if cfg.APIURL != "" {
		apiOpts = append(apiOpts, slackapi.OptionAPIURL(cfg.APIURL))
	}
	api := slackapi.New(cfg.BotToken, apiOpts...)

	client := socketmode.New(api,
		socketmode.OptionDebug(cfg.Debug),
		socketmode.OptionLog(sdkLog),
	)

	return newTransport(api, client, client.Events, cfg, opts, l), nil
}

func newTransport(api *slackapi.Client, socket socketClient, events <-chan socketmode.Event, cfg *config.SlackConfig, opts config.TransportOptions, l zerolog.Logger) *Transport {
	ackTimeout := time.Duration(opts.RequestTimeoutSeconds) * time.Second
	if ackTimeout <= 0 {
		ackTimeout = 10 * time.Second
	}
	return &Transport{
		api:        api,
		socket:     socket,
		events:     events,
		config:     cfg,
		logger:     l,
		ackTimeout: ackTimeout,
	}
}

// Name returns the transport name
func (t *Transport) Name() string {
	return Name
}

// Run authenticates, opens the Socket Mode connection and dispatches events to h until ctx is canceled
func (t *Transport) Run(ctx context.Context, h triage.Handlers) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("slack transport is already running")
	}
	t.running = true
	t.mu.Unlock()

	auth, err := t.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate bot token: %w", err)
	}
	t.logger.Info().
		Str("team", auth.Team).
		Str("bot_user", auth.User).
		Str("bot_id", auth.BotID).
		Msg("Slack bot authenticated")

	errc := make(chan error, 1)
	go func() {
		errc <- t.socket.RunContext(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("Slack transport stopped")
			return nil
		case err := <-errc:
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("socket mode connection failed: %w", err)
		case evt := <-t.events:
			t.handleEvent(ctx, evt, h)
		}
	}
}

// ProbeChannel checks the channel with conversations.info
func (t *Transport) ProbeChannel(ctx context.Context, channelID string) error {
	channel, err := t.api.GetConversationInfoContext(ctx, &slackapi.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return fmt.Errorf("failed to get conversation info for %s: %w", channelID, err)
	}

	t.logger.Debug().
		Str("channel", channelID).
		Str("name", channel.Name).
		Bool("is_member", channel.IsMember).
		Msg("Channel reachable")

	return nil
}

// SendArtifact posts the forwarded text as a section block with a button accessory
func (t *Transport) SendArtifact(ctx context.Context, artifact triage.ForwardedArtifact) (string, error) {
	_, ts, err := t.api.PostMessageContext(ctx, artifact.TargetChannel,
		slackapi.MsgOptionText(artifact.Text, false),
		slackapi.MsgOptionBlocks(artifactBlocks(artifact)...),
		slackapi.MsgOptionMetadata(artifactMetadata(artifact)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}

	t.logger.Debug().
		Str("channel", artifact.TargetChannel).
		Str("ts", ts).
		Str("forward_id", artifact.ID).
		Msg("Message posted")

	return ts, nil
}

// AddReaction adds reaction to the message. A reaction that is already present counts as success.
func (t *Transport) AddReaction(ctx context.Context, channel, timestamp, reaction string) error {
	err := t.api.AddReactionContext(ctx, reaction, slackapi.NewRefToMessage(channel, timestamp))
	if err == nil {
		return nil
	}

	var slackErr slackapi.SlackErrorResponse
	if errors.As(err, &slackErr) && slackErr.Err == errAlreadyReacted {
		t.logger.Debug().
			Str("channel", channel).
			Str("ts", timestamp).
			Msg("Reaction already present")
		return nil
	}

	return fmt.Errorf("failed to add reaction: %w", err)
}

// AckInteraction acknowledges the Socket Mode envelope
func (t *Transport) AckInteraction(ctx context.Context, interactionID string) error {
	if interactionID == "" {
		return fmt.Errorf("envelope id is required")
	}
	if err := t.socket.AckCtx(ctx, interactionID, nil); err != nil {
		return fmt.Errorf("failed to ack envelope %s: %w", interactionID, err)
	}
	return nil
}

// IsRunning returns whether Run has been called
func (t *Transport) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
