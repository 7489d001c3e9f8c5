package triage

import (
	"context"
	"fmt"
	"sync"
)

type reactionCall struct {
	Channel   string
	Timestamp string
	Reaction  string
}

// fakeTransport records every outbound call and can be told to fail.
type fakeTransport struct {
	mu sync.Mutex

	sent      []ForwardedArtifact
	reactions []reactionCall
	acks      []string
	probes    []string

	sendErr     error
	sendErrFor  map[string]error // keyed by source text
	reactionErr error
	ackErr      error
	badChannels map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sendErrFor:  make(map[string]error),
		badChannels: make(map[string]bool),
	}
}

func (f *fakeTransport) ProbeChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, channelID)
	if f.badChannels[channelID] {
		return fmt.Errorf("channel_not_found")
	}
	return nil
}

func (f *fakeTransport) SendArtifact(_ context.Context, artifact ForwardedArtifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.sendErrFor[artifact.Text]; ok {
		return "", err
	}
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, artifact)
	return fmt.Sprintf("h%d", len(f.sent)), nil
}

func (f *fakeTransport) AddReaction(_ context.Context, channel, timestamp, reaction string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactionErr != nil {
		return f.reactionErr
	}
	f.reactions = append(f.reactions, reactionCall{Channel: channel, Timestamp: timestamp, Reaction: reaction})
	return nil
}

func (f *fakeTransport) AckInteraction(_ context.Context, interactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, interactionID)
	return f.ackErr
}

func (f *fakeTransport) Sent() []ForwardedArtifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ForwardedArtifact(nil), f.sent...)
}

func (f *fakeTransport) Reactions() []reactionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reactionCall(nil), f.reactions...)
}
