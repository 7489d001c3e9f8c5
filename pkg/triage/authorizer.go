package triage

import (
	"context"
	"fmt"
	"strings"
)

// ChannelAuthorizer holds the monitored source channels and the single target channel.
type ChannelAuthorizer struct {
	sources []string
	allowed map[string]struct{}
	target  string
}

// NewChannelAuthorizer validates and stores the channel scope.
func NewChannelAuthorizer(sources []string, target string) (*ChannelAuthorizer, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, NewConfigError("target_channel_id", ErrNoTargetChannel)
	}

	a := &ChannelAuthorizer{
		allowed: make(map[string]struct{}, len(sources)),
		target:  target,
	}

	for i, raw := range sources {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, NewConfigError(fmt.Sprintf("channel_ids[%d]", i), fmt.Errorf("empty channel id"))
		}
		if id == target {
			return nil, NewConfigError("channel_ids", fmt.Errorf("%w: %s", ErrTargetIsSource, id))
		}
		if _, dup := a.allowed[id]; dup {
			continue
		}
		a.allowed[id] = struct{}{}
		a.sources = append(a.sources, id)
	}

	if len(a.sources) == 0 {
		return nil, NewConfigError("channel_ids", ErrNoSourceChannels)
	}

	return a, nil
}

// IsSourceChannel reports whether id is exactly one of the configured source channels.
func (a *ChannelAuthorizer) IsSourceChannel(id string) bool {
	_, ok := a.allowed[id]
	return ok
}

// Target returns the forwarding destination.
func (a *ChannelAuthorizer) Target() string {
	return a.target
}

// Sources returns the source channels in configured order.
func (a *ChannelAuthorizer) Sources() []string {
	return append([]string(nil), a.sources...)
}

// ValidateAtStartup probes every source channel once, in order. The first unreachable channel
// is a ConfigError. The target channel is not probed.
func (a *ChannelAuthorizer) ValidateAtStartup(ctx context.Context, prober ChannelProber) error {
	if prober == nil {
		return NewConfigError("transport", fmt.Errorf("channel prober is required"))
	}

	for _, id := range a.sources {
		if err := prober.ProbeChannel(ctx, id); err != nil {
			return NewConfigError("channel_ids", fmt.Errorf("invalid channel id %s: %w", id, err))
		}
	}

	return nil
}
