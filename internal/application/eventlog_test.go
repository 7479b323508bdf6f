package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

func TestEventLogger_AcksEveryEvent(t *testing.T) {
	bus := newFakeBus()
	logger := NewEventLogger(model.TopicRepositoryEvents, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = logger.Run(ctx) }()

	bus.deliver(driven.Message{Topic: model.TopicRepositoryEvents, Type: model.MsgRepositoryCreated, Body: []byte(`{}`)})
	bus.deliver(driven.Message{Topic: model.TopicRepositoryEvents, Type: model.MsgRepositoryUpdated, Body: []byte(`{}`)})
	bus.deliver(driven.Message{Topic: model.TopicRepositoryEvents, Type: "SomeFutureEvent", Body: []byte(`{}`)})

	waitFor(t, func() bool {
		acked, _ := bus.outcomes()
		return len(acked) == 3
	})

	acked, nacked := bus.outcomes()
	assert.Equal(t, []string{model.MsgRepositoryCreated, model.MsgRepositoryUpdated, "SomeFutureEvent"}, acked)
	assert.Empty(t, nacked)
}

func TestEventLogger_StopsOnContextCancel(t *testing.T) {
	bus := newFakeBus()
	logger := NewEventLogger(model.TopicPullRequestEvents, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- logger.Run(ctx) }()

	cancel()

	waitFor(t, func() bool {
		select {
		case err := <-done:
			assert.NoError(t, err)
			return true
		default:
			return false
		}
	})
}
