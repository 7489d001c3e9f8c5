package triage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AcknowledgmentHandler closes the loop on a forwarded artifact: it confirms the interaction to the
// platform and reacts on the original message. It keeps no record of what was acknowledged.
type AcknowledgmentHandler struct {
	acker    InteractionAcker
	reactor  Reactor
	reaction string
	logger   zerolog.Logger
}

// NewAcknowledgmentHandler creates a handler that adds reaction on acknowledgment.
// An empty reaction falls back to DefaultReaction.
func NewAcknowledgmentHandler(acker InteractionAcker, reactor Reactor, reaction string, logger zerolog.Logger) *AcknowledgmentHandler {
	if reaction == "" {
		reaction = DefaultReaction
	}
	return &AcknowledgmentHandler{
		acker:    acker,
		reactor:  reactor,
		reaction: reaction,
		logger:   logger.With().Str("component", "acknowledge").Logger(),
	}
}

// Reaction returns the annotation this handler adds.
func (h *AcknowledgmentHandler) Reaction() string {
	return h.reaction
}

// OnAcknowledge acknowledges the interaction first, then adds exactly one reaction to the
// referenced original message.
func (h *AcknowledgmentHandler) OnAcknowledge(ctx context.Context, evt AcknowledgmentEvent) error {
	ackErr := h.acker.AckInteraction(ctx, evt.InteractionID)
	if ackErr != nil {
		h.logger.Warn().
			Err(ackErr).
			Str("interaction_id", evt.InteractionID).
			Msg("Failed to acknowledge interaction")
	}

	if evt.ControlID != ControlID {
		return fmt.Errorf("%w: %q", ErrUnknownControl, evt.ControlID)
	}
	if !evt.Reference.Valid() {
		return &TransportError{Op: "reaction", Ref: evt.Reference, Err: ErrMissingReference}
	}

	if err := h.reactor.AddReaction(ctx, evt.Reference.Channel, evt.Reference.Timestamp, h.reaction); err != nil {
		return &TransportError{
			Op:  "reaction",
			Ref: evt.Reference,
			Err: fmt.Errorf("failed to add reaction %s: %w", h.reaction, err),
		}
	}

	h.logger.Info().
		Str("channel", evt.Reference.Channel).
		Str("ts", evt.Reference.Timestamp).
		Str("user", evt.User).
		Str("reaction", h.reaction).
		Msg("Original message marked as resolved")

	if ackErr != nil {
		return &TransportError{Op: "ack", Ref: evt.Reference, Err: ackErr}
	}
	return nil
}
