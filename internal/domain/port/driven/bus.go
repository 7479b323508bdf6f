package driven

import "context"

// Message is the topic+type envelope shared by commands and events. Body is
// the JSON-encoded payload selected by Type.
type Message struct {
	Topic string
	Type  string
	Body  []byte
}

// Delivery is one inbound message plus its acknowledgement controls. Ack
// confirms handling; Nack returns the message to the transport for
// redelivery (at-least-once). Both are safe to call exactly once.
type Delivery struct {
	Message
	Ack  func()
	Nack func()
}

// Publisher is the outbound side of the message transport.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Bus is the full message-transport port: topic-scoped publish/subscribe
// with at-least-once delivery. The transport implementation (exchange/queue
// mechanics) lives behind this interface.
type Bus interface {
	Publisher
	Subscribe(topic string) (<-chan Delivery, error)
}
