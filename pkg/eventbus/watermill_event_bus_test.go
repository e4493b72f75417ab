package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/hesab/pkg/channels/gochannel"
	"github.com/dukex/hesab/pkg/eventbus"
	"github.com/dukex/hesab/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub := gochannel.New(watermill.NopLogger{}, gochannel.WithReplay())
	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := newTestBus(t)
	received := make(chan *events.WorkflowExecutionCompleted, 1)

	err := bus.Handle(events.WorkflowExecutionCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowExecutionCompleted)

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	published := events.WorkflowExecutionCompleted{
		BaseEvent:      events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, "payment_process", "exec-1"),
		UserID:         "user-1",
		StepsCompleted: []string{"validate_payment_request"},
	}

	require.NoError(t, bus.Publish(ctx, "user-1", published))

	select {
	case got := <-received:
		assert.Equal(t, published.ID, got.ID)
		assert.Equal(t, "payment_process", got.Workflow)
		assert.Equal(t, []string{"validate_payment_request"}, got.StepsCompleted)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_NotificationsUseTheirOwnTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := newTestBus(t)
	received := make(chan *events.BillingNotification, 1)

	require.NoError(t, bus.Handle(events.BillingNotificationEvent, func(_ context.Context, event any) error {
		received <- event.(*events.BillingNotification)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "user-2", events.BillingNotification{
		BaseEvent: events.NewBaseEvent(events.BillingNotificationEvent, "transfer_process", "exec-2"),
		UserID:    "user-2",
		Kind:      "transfer",
		Message:   "انتقال انجام شد",
	}))

	select {
	case got := <-received:
		assert.Equal(t, "transfer", got.Kind)
		assert.Equal(t, "user-2", got.UserID)
	case <-ctx.Done():
		t.Fatal("notification was not delivered")
	}
}

func TestWatermillEventBus_HandlerErrorRedelivers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := newTestBus(t)
	attempts := make(chan struct{}, 4)

	require.NoError(t, bus.Handle(events.WorkflowExecutionFailedEvent, func(context.Context, any) error {
		attempts <- struct{}{}
		if len(attempts) == 1 {
			return errors.New("notification service down")
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "exec-3", events.WorkflowExecutionFailed{
		BaseEvent: events.NewBaseEvent(events.WorkflowExecutionFailedEvent, "payment_process", "exec-3"),
		Error:     "process_payment: insufficient funds",
	}))

	assert.Eventually(t, func() bool { return len(attempts) >= 2 }, 3*time.Second, 10*time.Millisecond)
}
