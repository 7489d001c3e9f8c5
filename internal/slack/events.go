package slack

import (
	"context"

	"github.com/harun/triagebot/pkg/triage"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// handleEvent routes one Socket Mode event. Events API envelopes are acked here;
// block actions are acked by the acknowledgment handler through AckInteraction.
func (t *Transport) handleEvent(ctx context.Context, evt socketmode.Event, h triage.Handlers) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		t.logger.Info().Msg("Connecting to Slack with Socket Mode")
	case socketmode.EventTypeConnected:
		t.logger.Info().Msg("Connected to Slack with Socket Mode")
	case socketmode.EventTypeConnectionError:
		t.logger.Warn().Interface("data", evt.Data).Msg("Socket Mode connection failed, retrying")
	case socketmode.EventTypeInvalidAuth:
		t.logger.Error().Msg("Socket Mode rejected the app token")
	case socketmode.EventTypeEventsAPI:
		t.ackEnvelope(ctx, evt.Request)
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			t.logger.Warn().Msg("Unexpected Events API payload")
			return
		}
		t.handleEventsAPI(ctx, apiEvent, h)
	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slackapi.InteractionCallback)
		if !ok || callback.Type != slackapi.InteractionTypeBlockActions || len(callback.ActionCallback.BlockActions) == 0 {
			t.ackEnvelope(ctx, evt.Request)
			return
		}
		var envelopeID string
		if evt.Request != nil {
			envelopeID = evt.Request.EnvelopeID
		}
		if h.OnAcknowledge != nil {
			h.OnAcknowledge(ctx, toAcknowledgmentEvent(callback, envelopeID))
		}
	case socketmode.EventTypeSlashCommand:
		t.ackEnvelope(ctx, evt.Request)
	default:
		t.logger.Debug().Str("type", string(evt.Type)).Msg("Ignoring Socket Mode event")
	}
}

func (t *Transport) handleEventsAPI(ctx context.Context, apiEvent slackevents.EventsAPIEvent, h triage.Handlers) {
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}

	msg, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		t.logger.Debug().Str("type", apiEvent.InnerEvent.Type).Msg("Ignoring inner event")
		return
	}

	inbound := toInboundMessage(msg)
	t.logger.Debug().
		Str("channel", inbound.Channel).
		Str("ts", inbound.Timestamp).
		Str("subtype", inbound.SubType).
		Msg("Message event received")

	if !h.Accepts(inbound.Text) {
		return
	}
	if h.OnMessage != nil {
		h.OnMessage(ctx, inbound)
	}
}

func (t *Transport) ackEnvelope(ctx context.Context, req *socketmode.Request) {
	if req == nil || req.EnvelopeID == "" {
		return
	}
	ackCtx, cancel := context.WithTimeout(ctx, t.ackTimeout)
	defer cancel()
	if err := t.socket.AckCtx(ackCtx, req.EnvelopeID, nil); err != nil {
		t.logger.Warn().Err(err).Str("envelope_id", req.EnvelopeID).Msg("Failed to ack envelope")
	}
}

func toInboundMessage(msg *slackevents.MessageEvent) triage.InboundMessage {
	user := msg.User
	if user == "" {
		user = msg.BotID
	}
	return triage.InboundMessage{
		Channel:   msg.Channel,
		Text:      msg.Text,
		Timestamp: msg.TimeStamp,
		User:      user,
		SubType:   msg.SubType,
	}
}

// toAcknowledgmentEvent reads the first block action. The reference comes from the
// artifact's message metadata when present, otherwise from the button value.
func toAcknowledgmentEvent(callback slackapi.InteractionCallback, envelopeID string) triage.AcknowledgmentEvent {
	action := callback.ActionCallback.BlockActions[0]

	evt := triage.AcknowledgmentEvent{
		ControlID:       action.ActionID,
		InteractionID:   envelopeID,
		InvokingChannel: callback.Channel.ID,
		User:            callback.User.ID,
	}

	if ref, ok := referenceFromMetadata(callback.Message.Metadata); ok {
		evt.Reference = ref
	} else if ref, err := triage.ParseMessageRef(action.Value); err == nil {
		evt.Reference = ref
	}

	return evt
}
