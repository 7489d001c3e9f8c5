package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/harun/triagebot/internal/config"
	"github.com/harun/triagebot/internal/logger"
	"github.com/harun/triagebot/pkg/triage"
	"github.com/rs/zerolog"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWebAPI records Web API calls and answers with canned results
type fakeWebAPI struct {
	mu       sync.Mutex
	calls    map[string][]url.Values
	failures map[string]string
}

func newFakeWebAPI(t *testing.T) (*fakeWebAPI, *httptest.Server) {
	t.Helper()
	f := &fakeWebAPI{
		calls:    make(map[string][]url.Values),
		failures: make(map[string]string),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeWebAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/")
	_ = r.ParseForm()

	f.mu.Lock()
	f.calls[method] = append(f.calls[method], r.PostForm)
	failure, failing := f.failures[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		fmt.Fprintf(w, `{"ok":false,"error":%q}`, failure)
		return
	}

	switch method {
	case "auth.test":
		fmt.Fprint(w, `{"ok":true,"team":"Acme","user":"triagebot","bot_id":"B01"}`)
	case "chat.postMessage":
		fmt.Fprintf(w, `{"ok":true,"channel":%q,"ts":"1700000000.000200"}`, r.PostForm.Get("channel"))
	case "conversations.info":
		fmt.Fprintf(w, `{"ok":true,"channel":{"id":%q,"name":"alerts","is_member":true}}`, r.PostForm.Get("channel"))
	default:
		fmt.Fprint(w, `{"ok":true}`)
	}
}

func (f *fakeWebAPI) fail(method, slackErr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = slackErr
}

func (f *fakeWebAPI) callsTo(method string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.calls[method]...)
}

// fakeSocket stands in for the Socket Mode connection
type fakeSocket struct {
	mu     sync.Mutex
	acks   []string
	ackErr error
	runErr chan error
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{runErr: make(chan error, 1)}
}

func (s *fakeSocket) RunContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-s.runErr:
		return err
	}
}

func (s *fakeSocket) AckCtx(_ context.Context, reqID string, _ interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ackErr != nil {
		return s.ackErr
	}
	s.acks = append(s.acks, reqID)
	return nil
}

func (s *fakeSocket) acked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acks...)
}

func newTestTransport(t *testing.T, srv *httptest.Server) (*Transport, *fakeSocket, chan socketmode.Event) {
	t.Helper()
	api := slackapi.New("xoxb-test", slackapi.OptionAPIURL(srv.URL+"/"))
	socket := newFakeSocket()
	events := make(chan socketmode.Event, 8)
	cfg := &config.SlackConfig{AppToken: "xapp-test", BotToken: "xoxb-test", Reaction: triage.DefaultReaction}
	tr := newTransport(api, socket, events, cfg, config.TransportOptions{RequestTimeoutSeconds: 2}, zerolog.Nop())
	return tr, socket, events
}

func testArtifact() triage.ForwardedArtifact {
	return triage.ForwardedArtifact{
		ID:            "fwd-abc",
		Text:          "ERROR: *disk* full on db-1",
		TargetChannel: "CTARGET",
		Reference:     triage.MessageRef{Channel: "C01", Timestamp: "1699999999.000100"},
		ControlID:     triage.ControlID,
		ControlLabel:  triage.ControlLabel,
	}
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		tr, err := New(&config.SlackConfig{AppToken: "xapp-1", BotToken: "xoxb-1"}, config.TransportOptions{RequestTimeoutSeconds: 5}, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, Name, tr.Name())
		assert.False(t, tr.IsRunning())
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := New(nil, config.TransportOptions{}, logger.Nop())
		assert.ErrorContains(t, err, "config is required")
	})

	t.Run("missing tokens", func(t *testing.T) {
		_, err := New(&config.SlackConfig{AppToken: "xapp-1"}, config.TransportOptions{}, logger.Nop())
		assert.ErrorContains(t, err, "bot token is required")

		_, err = New(&config.SlackConfig{BotToken: "xoxb-1"}, config.TransportOptions{}, logger.Nop())
		assert.ErrorContains(t, err, "app token is required")
	})
}

func TestSendArtifact(t *testing.T) {
	f, srv := newFakeWebAPI(t)
	tr, _, _ := newTestTransport(t, srv)

	ts, err := tr.SendArtifact(context.Background(), testArtifact())
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000200", ts)

	calls := f.callsTo("chat.postMessage")
	require.Len(t, calls, 1)
	form := calls[0]
	assert.Equal(t, "CTARGET", form.Get("channel"))
	assert.Equal(t, "ERROR: *disk* full on db-1", form.Get("text"))

	var blocks []map[string]any
	require.NoError(t, json.Unmarshal([]byte(form.Get("blocks")), &blocks))
	require.Len(t, blocks, 1)
	assert.Equal(t, "section", blocks[0]["type"])

	text := blocks[0]["text"].(map[string]any)
	assert.Equal(t, "mrkdwn", text["type"])
	assert.Equal(t, "ERROR: *disk* full on db-1", text["text"])

	accessory := blocks[0]["accessory"].(map[string]any)
	assert.Equal(t, "button", accessory["type"])
	assert.Equal(t, "button_click", accessory["action_id"])
	assert.Equal(t, "C01|1699999999.000100", accessory["value"])
	assert.Equal(t, "Have you fixed it?", accessory["text"].(map[string]any)["text"])

	var meta slackapi.SlackMetadata
	require.NoError(t, json.Unmarshal([]byte(form.Get("metadata")), &meta))
	assert.Equal(t, "triage_forward", meta.EventType)
	assert.Equal(t, "fwd-abc", meta.EventPayload["forward_id"])
	assert.Equal(t, "C01", meta.EventPayload["source_channel"])
	assert.Equal(t, "1699999999.000100", meta.EventPayload["source_ts"])
}

func TestSendArtifactFailure(t *testing.T) {
	f, srv := newFakeWebAPI(t)
	tr, _, _ := newTestTransport(t, srv)
	f.fail("chat.postMessage", "not_in_channel")

	_, err := tr.SendArtifact(context.Background(), testArtifact())
	assert.ErrorContains(t, err, "not_in_channel")
}

func TestSendArtifactLongText(t *testing.T) {
	t.Run("section text is cut, fallback text is whole", func(t *testing.T) {
		f, srv := newFakeWebAPI(t)
		tr, _, _ := newTestTransport(t, srv)

		artifact := testArtifact()
		artifact.Text = "ERROR trace: " + strings.Repeat("é", 5000)

		_, err := tr.SendArtifact(context.Background(), artifact)
		require.NoError(t, err)

		form := f.callsTo("chat.postMessage")[0]
		assert.Equal(t, artifact.Text, form.Get("text"))

		var blocks []map[string]any
		require.NoError(t, json.Unmarshal([]byte(form.Get("blocks")), &blocks))
		section := blocks[0]["text"].(map[string]any)["text"].(string)
		assert.Equal(t, maxSectionText, utf8.RuneCountInString(section))
		assert.True(t, utf8.ValidString(section))
		assert.True(t, strings.HasPrefix(section, "ERROR trace: "))
		assert.True(t, strings.HasSuffix(section, "…"))
	})

	t.Run("text at the limit is untouched", func(t *testing.T) {
		text := strings.Repeat("x", maxSectionText)
		assert.Equal(t, text, truncateRunes(text, maxSectionText))
		assert.Equal(t, "ab…", truncateRunes("abcdef", 3))
	})
}

func TestAddReaction(t *testing.T) {
	t.Run("adds reaction to message", func(t *testing.T) {
		f, srv := newFakeWebAPI(t)
		tr, _, _ := newTestTransport(t, srv)

		require.NoError(t, tr.AddReaction(context.Background(), "C01", "1699999999.000100", "white_check_mark"))

		calls := f.callsTo("reactions.add")
		require.Len(t, calls, 1)
		assert.Equal(t, "C01", calls[0].Get("channel"))
		assert.Equal(t, "1699999999.000100", calls[0].Get("timestamp"))
		assert.Equal(t, "white_check_mark", calls[0].Get("name"))
	})

	t.Run("already reacted is success", func(t *testing.T) {
		f, srv := newFakeWebAPI(t)
		tr, _, _ := newTestTransport(t, srv)
		f.fail("reactions.add", "already_reacted")

		assert.NoError(t, tr.AddReaction(context.Background(), "C01", "1.2", "white_check_mark"))
	})

	t.Run("other errors surface", func(t *testing.T) {
		f, srv := newFakeWebAPI(t)
		tr, _, _ := newTestTransport(t, srv)
		f.fail("reactions.add", "message_not_found")

		assert.ErrorContains(t, tr.AddReaction(context.Background(), "C01", "1.2", "white_check_mark"), "message_not_found")
	})
}

func TestProbeChannel(t *testing.T) {
	f, srv := newFakeWebAPI(t)
	tr, _, _ := newTestTransport(t, srv)

	require.NoError(t, tr.ProbeChannel(context.Background(), "C01"))
	assert.Equal(t, "C01", f.callsTo("conversations.info")[0].Get("channel"))

	f.fail("conversations.info", "channel_not_found")
	err := tr.ProbeChannel(context.Background(), "CNOPE")
	assert.ErrorContains(t, err, "CNOPE")
	assert.ErrorContains(t, err, "channel_not_found")
}

func TestAckInteraction(t *testing.T) {
	_, srv := newFakeWebAPI(t)
	tr, socket, _ := newTestTransport(t, srv)

	require.NoError(t, tr.AckInteraction(context.Background(), "env-1"))
	assert.Equal(t, []string{"env-1"}, socket.acked())

	assert.Error(t, tr.AckInteraction(context.Background(), ""))

	socket.ackErr = context.DeadlineExceeded
	assert.ErrorIs(t, tr.AckInteraction(context.Background(), "env-2"), context.DeadlineExceeded)
}

func messageEvent(envelope, channel, ts, text string) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Type: "message",
				Data: &slackevents.MessageEvent{Channel: channel, TimeStamp: ts, Text: text, User: "U01"},
			},
		},
		Request: &socketmode.Request{EnvelopeID: envelope},
	}
}

func blockActionEvent(envelope string, callback slackapi.InteractionCallback) socketmode.Event {
	callback.Type = slackapi.InteractionTypeBlockActions
	return socketmode.Event{
		Type:    socketmode.EventTypeInteractive,
		Data:    callback,
		Request: &socketmode.Request{EnvelopeID: envelope},
	}
}

func TestRun(t *testing.T) {
	f, srv := newFakeWebAPI(t)
	tr, socket, events := newTestTransport(t, srv)

	var clicked slackapi.InteractionCallback
	clicked.Channel.ID = "CTARGET"
	clicked.User.ID = "U02"
	clicked.ActionCallback.BlockActions = []*slackapi.BlockAction{{ActionID: "button_click", Value: "C01|1.1"}}

	events <- socketmode.Event{Type: socketmode.EventTypeConnected}
	events <- messageEvent("env-1", "C01", "1.1", "ERROR in checkout")
	events <- messageEvent("env-2", "C01", "1.2", "deploy finished")
	events <- blockActionEvent("env-3", clicked)

	messages := make(chan triage.InboundMessage, 4)
	acks := make(chan triage.AcknowledgmentEvent, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(ctx, triage.Handlers{
			Subscription:  func(text string) bool { return strings.Contains(text, "ERROR") },
			OnMessage:     func(_ context.Context, msg triage.InboundMessage) { messages <- msg },
			OnAcknowledge: func(_ context.Context, evt triage.AcknowledgmentEvent) { acks <- evt },
		})
	}()

	var msg triage.InboundMessage
	select {
	case msg = <-messages:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	var ack triage.AcknowledgmentEvent
	select {
	case ack = <-acks:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for acknowledgment")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Len(t, f.callsTo("auth.test"), 1)
	assert.Equal(t, triage.InboundMessage{Channel: "C01", Text: "ERROR in checkout", Timestamp: "1.1", User: "U01"}, msg)
	assert.Empty(t, messages)

	assert.Equal(t, triage.AcknowledgmentEvent{
		ControlID:       triage.ControlID,
		InteractionID:   "env-3",
		InvokingChannel: "CTARGET",
		Reference:       triage.MessageRef{Channel: "C01", Timestamp: "1.1"},
		User:            "U02",
	}, ack)

	// Events API envelopes are acked by the transport, interactions are left to the handler.
	assert.Equal(t, []string{"env-1", "env-2"}, socket.acked())

	assert.Error(t, tr.Run(context.Background(), triage.Handlers{}))
}

func TestRunAuthFailure(t *testing.T) {
	f, srv := newFakeWebAPI(t)
	tr, _, _ := newTestTransport(t, srv)
	f.fail("auth.test", "invalid_auth")

	err := tr.Run(context.Background(), triage.Handlers{})
	assert.ErrorContains(t, err, "invalid_auth")
}

func TestRunConnectionFailure(t *testing.T) {
	_, srv := newFakeWebAPI(t)
	tr, socket, _ := newTestTransport(t, srv)
	socket.runErr <- fmt.Errorf("invalid_auth")

	err := tr.Run(context.Background(), triage.Handlers{})
	assert.ErrorContains(t, err, "socket mode connection failed")
}

func TestToAcknowledgmentEvent(t *testing.T) {
	t.Run("metadata wins over button value", func(t *testing.T) {
		var cb slackapi.InteractionCallback
		cb.ActionCallback.BlockActions = []*slackapi.BlockAction{{ActionID: "button_click", Value: "CSTALE|0.1"}}
		cb.Message.Metadata = artifactMetadata(testArtifact())

		evt := toAcknowledgmentEvent(cb, "env")
		assert.Equal(t, triage.MessageRef{Channel: "C01", Timestamp: "1699999999.000100"}, evt.Reference)
	})

	t.Run("foreign metadata falls back to value", func(t *testing.T) {
		var cb slackapi.InteractionCallback
		cb.ActionCallback.BlockActions = []*slackapi.BlockAction{{ActionID: "button_click", Value: "C02|2.2"}}
		cb.Message.Metadata = slackapi.SlackMetadata{EventType: "other", EventPayload: map[string]interface{}{"source_channel": "CX"}}

		evt := toAcknowledgmentEvent(cb, "env")
		assert.Equal(t, triage.MessageRef{Channel: "C02", Timestamp: "2.2"}, evt.Reference)
	})

	t.Run("no reference anywhere", func(t *testing.T) {
		var cb slackapi.InteractionCallback
		cb.ActionCallback.BlockActions = []*slackapi.BlockAction{{ActionID: "button_click"}}

		evt := toAcknowledgmentEvent(cb, "env")
		assert.True(t, evt.Reference.IsZero())
		assert.Equal(t, "env", evt.InteractionID)
	})

	t.Run("keeps foreign action id", func(t *testing.T) {
		var cb slackapi.InteractionCallback
		cb.ActionCallback.BlockActions = []*slackapi.BlockAction{{ActionID: "approve", Value: "C01|1.1"}}

		assert.Equal(t, "approve", toAcknowledgmentEvent(cb, "env").ControlID)
	})
}

func TestNonBlockActionInteractionIsAcked(t *testing.T) {
	_, srv := newFakeWebAPI(t)
	tr, socket, _ := newTestTransport(t, srv)

	called := false
	tr.handleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeInteractive,
		Data:    slackapi.InteractionCallback{Type: slackapi.InteractionTypeShortcut},
		Request: &socketmode.Request{EnvelopeID: "env-9"},
	}, triage.Handlers{OnAcknowledge: func(context.Context, triage.AcknowledgmentEvent) { called = true }})

	assert.False(t, called)
	assert.Equal(t, []string{"env-9"}, socket.acked())
}
