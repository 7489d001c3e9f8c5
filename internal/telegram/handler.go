package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/triagebot/pkg/triage"
)

const callbackSeparator = "|"

// handleUpdate converts one update into a handler call
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update, h triage.Handlers) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message, h)
	case update.ChannelPost != nil:
		b.handleMessage(ctx, update.ChannelPost, h)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery, h)
	default:
		b.logger.Debug().Int("update_id", update.UpdateID).Msg("Ignoring update")
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message, h triage.Handlers) {
	inbound := toInboundMessage(msg)

	if !h.Accepts(inbound.Text) {
		return
	}
	if h.OnMessage != nil {
		h.OnMessage(ctx, inbound)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery, h triage.Handlers) {
	evt := toAcknowledgmentEvent(query)

	b.logger.Debug().
		Str("callback_id", query.ID).
		Str("control", evt.ControlID).
		Msg("Callback query received")

	if h.OnAcknowledge != nil {
		h.OnAcknowledge(ctx, evt)
	}
}

// toInboundMessage maps a message or channel post. Media captions count as text.
func toInboundMessage(msg *tgbotapi.Message) triage.InboundMessage {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	inbound := triage.InboundMessage{
		Text:      text,
		Timestamp: strconv.Itoa(msg.MessageID),
	}
	if msg.Chat != nil {
		inbound.Channel = strconv.FormatInt(msg.Chat.ID, 10)
	}
	if msg.From != nil {
		inbound.User = msg.From.UserName
		if msg.From.IsBot {
			inbound.SubType = "bot_message"
		}
	}
	if msg.From == nil && msg.SenderChat != nil {
		inbound.User = msg.SenderChat.UserName
	}

	return inbound
}

// toAcknowledgmentEvent decodes callback data of the form "<control>|<channel>|<message id>".
// A malformed reference leaves Reference zero for the handler to reject.
func toAcknowledgmentEvent(query *tgbotapi.CallbackQuery) triage.AcknowledgmentEvent {
	control, rest, _ := strings.Cut(query.Data, callbackSeparator)

	evt := triage.AcknowledgmentEvent{
		ControlID:     control,
		InteractionID: query.ID,
	}
	if ref, err := triage.ParseMessageRef(rest); err == nil {
		evt.Reference = ref
	}
	if query.Message != nil && query.Message.Chat != nil {
		evt.InvokingChannel = strconv.FormatInt(query.Message.Chat.ID, 10)
	}
	if query.From != nil {
		evt.User = query.From.UserName
	}

	return evt
}

func callbackData(control string, ref triage.MessageRef) string {
	return control + callbackSeparator + ref.String()
}
