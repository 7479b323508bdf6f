package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// EventLogger is the default consumer for an outbound event topic. It logs
// every event and acks it, keeping the topic drained when no other consumer
// is attached. The bus queues are bounded, so every event topic needs at
// least one consumer or publishes eventually start failing.
type EventLogger struct {
	topic string
	bus   driven.Bus
}

// NewEventLogger creates an EventLogger for one topic.
func NewEventLogger(topic string, bus driven.Bus) *EventLogger {
	return &EventLogger{topic: topic, bus: bus}
}

// Run subscribes to the logger's topic and consumes deliveries until the
// context is canceled.
func (l *EventLogger) Run(ctx context.Context) error {
	deliveries, err := l.bus.Subscribe(l.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", l.topic, err)
	}

	slog.Info("event logger started", "topic", l.topic)
	for {
		select {
		case <-ctx.Done():
			slog.Info("event logger stopped", "topic", l.topic)
			return nil
		case delivery := <-deliveries:
			slog.Info("event published",
				"topic", l.topic,
				"event_type", delivery.Type,
			)
			delivery.Ack()
		}
	}
}
