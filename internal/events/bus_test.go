package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	changedCh, unsubChanged := Subscribe[SheetsChanged](bus, 4)
	defer unsubChanged()
	savedCh, unsubSaved := Subscribe[SaveCompleted](bus, 4)
	defer unsubSaved()

	require.NoError(t, bus.Publish(context.Background(), SheetsChanged{Reason: "update_slot"}))

	select {
	case got := <-changedCh:
		require.Equal(t, "update_slot", got.Reason)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SheetsChanged")
	}

	select {
	case <-savedCh:
		t.Fatal("SaveCompleted subscriber must not see SheetsChanged")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := Subscribe[StatusChanged](bus, 1)
	unsub()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Publishing after unsubscribe must not block or error.
	require.NoError(t, bus.Publish(context.Background(), StatusChanged{Status: "saved"}))
}

func TestBusPublishAfterCloseFails(t *testing.T) {
	bus := NewBus()
	bus.Close()
	require.Error(t, bus.Publish(context.Background(), SheetsChanged{}))
}
