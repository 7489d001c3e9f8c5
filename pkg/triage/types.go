package triage

import (
	"fmt"
	"strings"
)

const (
	// ControlID is the identifier shared by every forwarded artifact's control.
	ControlID = "button_click"

	// ControlLabel is the label shown on the acknowledgment control.
	ControlLabel = "Have you fixed it?"

	// DefaultReaction is the annotation added to the original message on acknowledgment.
	DefaultReaction = "white_check_mark"

	refSeparator = "|"
)

// InboundMessage is a message event delivered by a transport.
type InboundMessage struct {
	Channel   string
	Text      string
	Timestamp string

	// Informational only, never used for the forward decision.
	User    string
	SubType string
}

// Ref returns the reference identifying this message on the platform.
func (m InboundMessage) Ref() MessageRef {
	return MessageRef{Channel: m.Channel, Timestamp: m.Timestamp}
}

// MessageRef points at a single message: channel plus the platform's per-channel timestamp token.
type MessageRef struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}

// IsZero reports whether both parts are empty.
func (r MessageRef) IsZero() bool {
	return r.Channel == "" && r.Timestamp == ""
}

// Valid reports whether both parts are present.
func (r MessageRef) Valid() bool {
	return r.Channel != "" && r.Timestamp != ""
}

// String encodes the reference as "<channel>|<timestamp>".
func (r MessageRef) String() string {
	return r.Channel + refSeparator + r.Timestamp
}

// ParseMessageRef decodes the form produced by MessageRef.String.
func ParseMessageRef(s string) (MessageRef, error) {
	channel, ts, ok := strings.Cut(s, refSeparator)
	if !ok {
		return MessageRef{}, fmt.Errorf("%w: %q", ErrMissingReference, s)
	}
	ref := MessageRef{Channel: strings.TrimSpace(channel), Timestamp: strings.TrimSpace(ts)}
	if !ref.Valid() {
		return MessageRef{}, fmt.Errorf("%w: %q", ErrMissingReference, s)
	}
	return ref, nil
}

// ForwardedArtifact is the message created in the target channel for a matched message.
type ForwardedArtifact struct {
	ID            string
	Text          string
	TargetChannel string
	Reference     MessageRef
	ControlID     string
	ControlLabel  string

	// Handle is the transport-side identifier of the created message, set after a successful send.
	Handle string
}

// AcknowledgmentEvent is produced when a human activates the control on a forwarded artifact.
type AcknowledgmentEvent struct {
	ControlID       string
	InteractionID   string
	InvokingChannel string
	Reference       MessageRef
	User            string
}

// Decision is the outcome of the filter.
type Decision int

const (
	Ignore Decision = iota
	Forward
)

func (d Decision) String() string {
	switch d {
	case Forward:
		return "forward"
	default:
		return "ignore"
	}
}

// IgnoreReason explains an Ignore decision.
type IgnoreReason string

const (
	IgnoreNone                IgnoreReason = ""
	IgnoreUnauthorizedChannel IgnoreReason = "unauthorized_channel"
	IgnoreNoMatch             IgnoreReason = "no_match"
)

// Action is what the filter decided for one message.
type Action struct {
	Decision Decision
	Reason   IgnoreReason
	Message  InboundMessage
}

// ShouldForward reports whether the action is a forward.
func (a Action) ShouldForward() bool {
	return a.Decision == Forward
}
