package natspub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kruplan/kruplan/internal/events"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []Envelope
}

func (f *fakeConn) Publish(_ string, data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	f.mu.Lock()
	f.messages = append(f.messages, env)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) envelopes() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Envelope(nil), f.messages...)
}

func TestPublisherForwardsSaveEvents(t *testing.T) {
	bus := events.NewBus()
	conn := &fakeConn{}
	pub, err := NewPublisher(conn, "kruplan.saves", bus, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	// Give the subscriptions a moment to register.
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, events.SaveCompleted{Owner: "owner-1", SheetCount: 2, SavedAt: time.Now()}))
	require.NoError(t, bus.Publish(ctx, events.SaveFailed{Owner: "owner-1", Error: "boom", FailedAt: time.Now()}))

	require.Eventually(t, func() bool {
		return len(conn.envelopes()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	envs := conn.envelopes()
	require.Equal(t, "save_completed", envs[0].Type)
	require.Equal(t, "save_failed", envs[1].Type)
	for _, env := range envs {
		_, err := uuid.Parse(env.ID)
		require.NoError(t, err)
		require.False(t, env.EmittedAt.IsZero())
	}

	var completed events.SaveCompleted
	require.NoError(t, json.Unmarshal(envs[0].Payload, &completed))
	require.Equal(t, "owner-1", completed.Owner)
	require.Equal(t, 2, completed.SheetCount)
}

func TestNewPublisherValidation(t *testing.T) {
	bus := events.NewBus()
	_, err := NewPublisher(nil, "subj", bus, nil)
	require.Error(t, err)
	_, err = NewPublisher(&fakeConn{}, "", bus, nil)
	require.Error(t, err)
	_, err = NewPublisher(&fakeConn{}, "subj", nil, nil)
	require.Error(t, err)
}
