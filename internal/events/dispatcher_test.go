package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvokesSubscribedHandlers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var received []Event
	dispatcher.Subscribe(EventSlaTicketBreached, func(_ context.Context, e Event) error {
		received = append(received, e)
		return nil
	})

	event := Event{ID: "e1", Type: EventSlaTicketBreached, TicketID: "t1"}
	require.NoError(t, dispatcher.Publish(context.Background(), event))

	require.Len(t, received, 1)
	assert.Equal(t, "e1", received[0].ID)
	assert.Equal(t, "t1", received[0].TicketID)
}

func TestPublishUnknownTypeIsNoOp(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	called := false
	dispatcher.Subscribe(EventSlaTicketWarning, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{Type: EventType("something_else")})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestPublishContinuesAfterHandlerError(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	dispatcher.Subscribe(EventSlaTicketWarning, func(context.Context, Event) error {
		return errors.New("handler exploded")
	})
	secondCalled := false
	dispatcher.Subscribe(EventSlaTicketWarning, func(context.Context, Event) error {
		secondCalled = true
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{Type: EventSlaTicketWarning})
	require.NoError(t, err)
	assert.True(t, secondCalled)
}

func TestSubscribeSupportsMultipleTypes(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	counts := map[EventType]int{}
	handler := func(_ context.Context, e Event) error {
		counts[e.Type]++
		return nil
	}
	dispatcher.Subscribe(EventSlaTicketWarning, handler)
	dispatcher.Subscribe(EventSlaTicketBreached, handler)

	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventSlaTicketWarning}))
	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventSlaTicketBreached}))
	require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventSlaTicketBreached}))

	assert.Equal(t, 1, counts[EventSlaTicketWarning])
	assert.Equal(t, 2, counts[EventSlaTicketBreached])
}
