package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/harun/triagebot/internal/tracing"
	"github.com/harun/triagebot/pkg/triage"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const ignoreUnknownControl = "unknown_control"

// EventLoop handles the events a transport delivers from its receive loop.
// Handlers run one at a time and never return errors to the transport.
type EventLoop struct {
	daemon *Daemon
	logger zerolog.Logger
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon: d,
		logger: d.logger.Component("eventloop"),
	}
}

// Handlers returns the callbacks passed to Transport.Run
func (e *EventLoop) Handlers() triage.Handlers {
	return triage.Handlers{
		Subscription:  e.daemon.filter.Subscription(),
		OnMessage:     e.HandleMessage,
		OnAcknowledge: e.HandleAcknowledge,
	}
}

// HandleMessage filters msg and forwards it to the target channel on a match
func (e *EventLoop) HandleMessage(ctx context.Context, msg triage.InboundMessage) {
	d := e.daemon
	transport := d.transport.Name()

	ctx = tracing.NewEventContext(ctx, transport, msg.Channel)
	ctx, span := tracing.StartSpan(ctx, "triage.message", attribute.String("triagebot.ts", msg.Timestamp))
	defer span.End()

	log := tracing.LoggerFromContext(ctx, e.logger)
	d.metrics.RecordReceived(transport)

	action := d.filter.OnMessage(msg)
	if !action.ShouldForward() {
		d.metrics.RecordIgnored(string(action.Reason))
		span.SetAttributes(attribute.String("triagebot.ignored", string(action.Reason)))
		log.Debug().
			Str("ts", msg.Timestamp).
			Str("reason", string(action.Reason)).
			Msg("Message ignored")
		return
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	start := time.Now()
	artifact, err := d.dispatcher.Forward(callCtx, msg)
	d.metrics.RecordForward(err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forward failed")
		log.Error().
			Err(err).
			Str("ts", msg.Timestamp).
			Str("forward_id", artifact.ID).
			Msg("Failed to forward message")
		return
	}

	span.SetAttributes(attribute.String("triagebot.forward_id", artifact.ID))
}

// HandleAcknowledge acks the interaction and reacts on the referenced original message
func (e *EventLoop) HandleAcknowledge(ctx context.Context, evt triage.AcknowledgmentEvent) {
	d := e.daemon
	transport := d.transport.Name()

	ctx = tracing.NewEventContext(ctx, transport, evt.InvokingChannel)
	ctx, span := tracing.StartSpan(ctx, "triage.acknowledge", attribute.String("triagebot.control", evt.ControlID))
	defer span.End()

	log := tracing.LoggerFromContext(ctx, e.logger)

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	start := time.Now()
	err := d.ackHandler.OnAcknowledge(callCtx, evt)

	if errors.Is(err, triage.ErrUnknownControl) {
		d.metrics.RecordIgnored(ignoreUnknownControl)
		log.Debug().Str("control", evt.ControlID).Msg("Interaction ignored")
		return
	}

	d.metrics.RecordAcknowledgment(err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acknowledge failed")
		log.Error().
			Err(err).
			Str("interaction_id", evt.InteractionID).
			Str("original_channel", evt.Reference.Channel).
			Str("original_ts", evt.Reference.Timestamp).
			Str("user", evt.User).
			Msg("Failed to acknowledge forwarded message")
	}
}

// callContext bounds one outbound call. It survives cancelation of the receive
// loop so an in-flight call can finish during shutdown.
func (e *EventLoop) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := trace.ContextWithSpan(tracing.Detach(ctx), trace.SpanFromContext(ctx))
	return context.WithTimeout(detached, e.daemon.callTimeout)
}
