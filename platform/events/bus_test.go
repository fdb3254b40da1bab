package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"recruitment_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var calls []int
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls = append(calls, 1)
		return nil
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls = append(calls, 2)
		return nil
	}))

	require.NoError(t, bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()}))
	assert.Equal(t, []int{1, 2}, calls)
}

func TestPublishSyncStopsOnError(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	boom := errors.New("boom")
	second := false
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { return boom }))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		second = true
		return nil
	}))

	assert.ErrorIs(t, bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()}), boom)
	assert.False(t, second)
}

func TestPublishSurvivesCancelledContext(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	done := make(chan error, 1)
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		done <- ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{NewBaseEvent()})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}
