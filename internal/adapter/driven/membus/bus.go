// Package membus is an in-process implementation of the Bus port: topic
// queues with ack/nack and at-least-once redelivery. It stands in for an
// external broker in single-process deployments and in tests; the transport
// contract it honors is the same one a broker-backed adapter would.
package membus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Bus = (*Bus)(nil)

// defaultQueueDepth bounds each topic queue. Publish fails once a topic is
// full rather than blocking a handler mid-message.
const defaultQueueDepth = 1024

// Bus is a channel-backed topic bus. Messages published to a topic before
// any subscriber exists are queued until one arrives. A nacked delivery is
// requeued, so a delivery may be observed more than once — exactly the
// at-least-once behavior handlers must tolerate.
type Bus struct {
	mu     sync.Mutex
	topics map[string]chan driven.Delivery
	depth  int
}

// New creates a Bus with the default per-topic queue depth.
func New() *Bus {
	return &Bus{
		topics: make(map[string]chan driven.Delivery),
		depth:  defaultQueueDepth,
	}
}

func (b *Bus) topic(name string) chan driven.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan driven.Delivery, b.depth)
		b.topics[name] = ch
	}
	return ch
}

// Publish enqueues one message on its topic. It fails when the topic queue
// is full.
func (b *Bus) Publish(ctx context.Context, msg driven.Message) error {
	ch := b.topic(msg.Topic)

	delivery := driven.Delivery{Message: msg}
	delivery.Ack = func() {}
	delivery.Nack = func() {
		// Requeue asynchronously: the nacking handler still owns the
		// subscription channel, so a synchronous send could deadlock on a
		// full queue.
		go func() {
			if err := b.Publish(context.Background(), msg); err != nil {
				slog.Error("requeue after nack failed, message dropped",
					"topic", msg.Topic,
					"message_type", msg.Type,
					"error", err,
				)
			}
		}()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case ch <- delivery:
		return nil
	default:
		return fmt.Errorf("publish to %s: topic queue full", msg.Topic)
	}
}

// Subscribe returns the delivery channel for one topic. Every subscriber of
// a topic competes for its deliveries, mirroring a shared queue.
func (b *Bus) Subscribe(topic string) (<-chan driven.Delivery, error) {
	return b.topic(topic), nil
}
