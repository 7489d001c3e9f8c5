package triage

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPatternSet is returned when no usable pattern is configured
	ErrEmptyPatternSet = errors.New("pattern set is empty")

	// ErrNoSourceChannels is returned when no source channel is configured
	ErrNoSourceChannels = errors.New("no source channels configured")

	// ErrNoTargetChannel is returned when the target channel is missing
	ErrNoTargetChannel = errors.New("target channel is required")

	// ErrTargetIsSource is returned when the target channel is also a monitored source
	ErrTargetIsSource = errors.New("target channel must not be a source channel")

	// ErrUnknownControl is returned for interactions with a control this relay did not create
	ErrUnknownControl = errors.New("unknown interactive control")

	// ErrMissingReference is returned when an interaction carries no usable original-message reference
	ErrMissingReference = errors.New("missing original message reference")
)

// ConfigError is a fatal startup error. The process must not start serving events.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %v", e.Err)
	}
	return fmt.Sprintf("config error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err as a ConfigError for field.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// TransportError is a per-event failure of an outbound platform call.
// Callers log it and move on; it never stops the event loop.
type TransportError struct {
	Op  string // forward, reaction, ack, probe
	Ref MessageRef
	Err error
}

func (e *TransportError) Error() string {
	if e.Ref.IsZero() {
		return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s failed for %s: %v", e.Op, e.Ref, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
