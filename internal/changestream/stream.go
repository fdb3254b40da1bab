// Package changestream fans lead change notifications out to every API
// instance. Writes publish on the event bus; the stream turns them into
// realtime events and delivers them to the local realtime hub, across
// processes through Redis Pub/Sub when it is configured.
package changestream

import (
	"context"

	"recruitment_backend/internal/events"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/realtime"
	"recruitment_backend/platform/logger"
)

// Sink receives events for delivery to connected sessions.
type Sink interface {
	Deliver(ctx context.Context, ev realtime.Event)
}

// Stream publishes one change notification.
type Stream interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// FromLeadChanged converts a persisted lead write.
func FromLeadChanged(e events.LeadStatusChanged) realtime.Event {
	return realtime.Event{
		ID:        e.ChangeID.String(),
		Kind:      realtime.KindLeadStatusChanged,
		LeadID:    e.LeadID,
		SiteID:    e.SiteID,
		Patch:     e.Patch,
		UpdatedAt: e.UpdatedAt,
	}
}

// FromMessageInserted converts an appended message. The message id doubles
// as the change id.
func FromMessageInserted(e events.MessageInserted) realtime.Event {
	return realtime.Event{
		ID:     e.MessageID.String(),
		Kind:   realtime.KindMessageInserted,
		LeadID: e.LeadID,
		SiteID: e.SiteID,
		Message: &domain.Message{
			ID:         e.MessageID,
			LeadID:     e.LeadID,
			SenderRole: e.SenderRole,
			Content:    e.Content,
			CreatedAt:  e.CreatedAt,
		},
	}
}

// Forward subscribes stream to the bus events that feed realtime sessions.
func Forward(bus events.Bus, stream Stream, log *logger.Logger) {
	publish := func(ctx context.Context, ev realtime.Event) error {
		if err := stream.Publish(ctx, ev); err != nil {
			log.RealtimeDropped(ev.SiteID, string(ev.Kind), err.Error())
			return err
		}
		return nil
	}

	bus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadStatusChanged)
		if !ok {
			return nil
		}
		return publish(ctx, FromLeadChanged(e))
	}))
	bus.Subscribe(events.MessageInserted{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.MessageInserted)
		if !ok {
			return nil
		}
		return publish(ctx, FromMessageInserted(e))
	}))
}

// Local delivers straight to an in-process sink. It serves single instance
// deployments without Redis.
type Local struct {
	sink Sink
}

func NewLocal(sink Sink) *Local {
	return &Local{sink: sink}
}

func (l *Local) Publish(ctx context.Context, ev realtime.Event) error {
	l.sink.Deliver(ctx, ev)
	return nil
}
