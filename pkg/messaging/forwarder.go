package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/moviemix/internal/core/events"
)

// Message is the wire form of a lifecycle event.
type Message struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Forwarder republishes bus events to the broker, keyed by event type.
type Forwarder struct {
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

func NewForwarder(publisher Publisher, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

// Attach subscribes the forwarder to every lifecycle event on bus.
func (f *Forwarder) Attach(bus *events.EventBus) {
	bus.SubscribeAll(events.LifecycleEventTypes, f.Handle)
}

func (f *Forwarder) Handle(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(Message{
		ID:         event.EventID(),
		Type:       event.EventType(),
		OccurredAt: event.OccurredAt(),
		Data:       event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.publisher.Publish(ctx, event.EventType(), payload); err != nil {
		return fmt.Errorf("forward event %s: %w", event.EventType(), err)
	}

	f.logger.Debug("event forwarded", "event_type", event.EventType(), "event_id", event.EventID())
	return nil
}
