package triage

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ForwardDispatcher creates the forwarded artifact in the target channel.
// One attempt per message: no retry, no queue.
type ForwardDispatcher struct {
	target string
	sender ArtifactSender
	logger zerolog.Logger
}

// NewForwardDispatcher creates a dispatcher that posts to target through sender.
func NewForwardDispatcher(target string, sender ArtifactSender, logger zerolog.Logger) *ForwardDispatcher {
	return &ForwardDispatcher{
		target: target,
		sender: sender,
		logger: logger.With().Str("component", "forward").Logger(),
	}
}

// Forward posts msg to the target channel with the acknowledgment control attached.
func (d *ForwardDispatcher) Forward(ctx context.Context, msg InboundMessage) (ForwardedArtifact, error) {
	id, err := gonanoid.New()
	if err != nil {
		// ID is only used for log correlation
		id = msg.Ref().String()
	}

	artifact := ForwardedArtifact{
		ID:            id,
		Text:          msg.Text,
		TargetChannel: d.target,
		Reference:     msg.Ref(),
		ControlID:     ControlID,
		ControlLabel:  ControlLabel,
	}

	handle, err := d.sender.SendArtifact(ctx, artifact)
	if err != nil {
		return artifact, &TransportError{
			Op:  "forward",
			Ref: artifact.Reference,
			Err: fmt.Errorf("failed to send message to %s: %w", d.target, err),
		}
	}
	artifact.Handle = handle

	d.logger.Info().
		Str("forward_id", artifact.ID).
		Str("source_channel", artifact.Reference.Channel).
		Str("source_ts", artifact.Reference.Timestamp).
		Str("target_channel", artifact.TargetChannel).
		Str("handle", handle).
		Msg("Message forwarded")

	return artifact, nil
}
