package triage

import "context"

// ChannelProber checks that a channel exists and is reachable by the bot.
type ChannelProber interface {
	ProbeChannel(ctx context.Context, channelID string) error
}

// ArtifactSender posts a forwarded artifact with its control and returns the platform handle.
type ArtifactSender interface {
	SendArtifact(ctx context.Context, artifact ForwardedArtifact) (string, error)
}

// Reactor adds an annotation to an existing message.
type Reactor interface {
	AddReaction(ctx context.Context, channel, timestamp, reaction string) error
}

// InteractionAcker confirms receipt of an interactive invocation to the platform.
type InteractionAcker interface {
	AckInteraction(ctx context.Context, interactionID string) error
}

// Handlers are the callbacks a transport invokes from its receive loop, one event at a time.
type Handlers struct {
	// Subscription is the upstream filter. Messages whose text it rejects are dropped by the
	// transport before OnMessage. A nil Subscription accepts everything.
	Subscription func(text string) bool

	OnMessage     func(ctx context.Context, msg InboundMessage)
	OnAcknowledge func(ctx context.Context, evt AcknowledgmentEvent)
}

// Accepts reports whether text passes the subscription filter.
func (h Handlers) Accepts(text string) bool {
	return h.Subscription == nil || h.Subscription(text)
}
