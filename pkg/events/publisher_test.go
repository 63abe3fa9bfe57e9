package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowline-dev/flowline/pkg/ports"
)

type testEvent struct {
	eventType string
	payload   interface{}
}

func (e testEvent) EventType() string    { return e.eventType }
func (e testEvent) Payload() interface{} { return e.payload }

func TestSyncPublisherDeliversInSubscriptionOrder(t *testing.T) {
	publisher := NewSyncPublisher(nil)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		_, err := publisher.Subscribe("step.completed", func(context.Context, ports.DomainEvent) error {
			order = append(order, name)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, publisher.Publish(context.Background(), testEvent{eventType: "step.completed"}))
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSyncPublisherFiltersByEventType(t *testing.T) {
	publisher := NewSyncPublisher(nil)

	var received int
	_, err := publisher.Subscribe("pipeline.completed", func(context.Context, ports.DomainEvent) error {
		received++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), testEvent{eventType: "pipeline.failed"}))
	require.Zero(t, received)

	require.NoError(t, publisher.Publish(context.Background(), testEvent{eventType: "pipeline.completed"}))
	require.Equal(t, 1, received)
}

func TestSyncPublisherHandlerErrorDoesNotStopDelivery(t *testing.T) {
	publisher := NewSyncPublisher(nil)

	var delivered []string
	_, err := publisher.Subscribe("step.failed", func(context.Context, ports.DomainEvent) error {
		delivered = append(delivered, "broken")
		return errors.New("handler exploded")
	})
	require.NoError(t, err)
	_, err = publisher.Subscribe("step.failed", func(context.Context, ports.DomainEvent) error {
		delivered = append(delivered, "healthy")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), testEvent{eventType: "step.failed"}))
	require.Equal(t, []string{"broken", "healthy"}, delivered)
}

func TestSyncPublisherUnsubscribe(t *testing.T) {
	publisher := NewSyncPublisher(nil)

	var count int
	sub, err := publisher.Subscribe("pipeline.started", func(context.Context, ports.DomainEvent) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), testEvent{eventType: "pipeline.started"}))
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	require.NoError(t, publisher.Publish(context.Background(), testEvent{eventType: "pipeline.started"}))
	require.Equal(t, 1, count)
}

func TestSyncPublisherIgnoresNilInput(t *testing.T) {
	publisher := NewSyncPublisher(nil)
	require.NoError(t, publisher.Publish(context.Background(), nil))

	sub, err := publisher.Subscribe("anything", nil)
	require.NoError(t, err)
	sub.Unsubscribe()
}
