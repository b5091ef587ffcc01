// Package events provides the in-process event bus used to decouple the
// schedule store from the persistence coordinator and outbound publishers.
package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/kruplan/kruplan/internal/fault"
)

// Bus is a small typed in-process event bus.
//
// Publish blocks until every subscriber has accepted the event or the
// context is canceled. The bus is not durable; it carries control-flow
// events inside a single process.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type]map[uint64]chan any
	nextID atomic.Uint64
	closed atomic.Bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]chan any)}
}

// Subscribe registers a subscription for events of concrete type T and
// returns the receive channel plus an unsubscribe function. Unsubscribing
// closes the channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	eventType := reflect.TypeFor[T]()
	out := make(chan T, buffer)

	if b.closed.Load() {
		close(out)
		return out, func() {}
	}

	raw := make(chan any, buffer)
	id := b.nextID.Add(1)

	b.mu.Lock()
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]chan any)
	}
	b.subs[eventType][id] = raw
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case evt, ok := <-raw:
				if !ok {
					return
				}
				if v, ok := evt.(T); ok {
					select {
					case out <- v:
					case <-done:
						return
					}
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if typeSubs, ok := b.subs[eventType]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			b.mu.Unlock()
			close(done)
		})
	}
	return out, unsubscribe
}

// Publish delivers evt to all subscribers of its concrete type.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return fault.ValidationError("event cannot be nil").Build()
	}
	if b.closed.Load() {
		return fault.InternalError("event bus is closed").Build()
	}

	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	targets := make([]chan any, 0, len(b.subs[evtType]))
	for _, ch := range b.subs[evtType] {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- evt:
		case <-ctx.Done():
			return fault.Wrap(ctx.Err(), fault.CategoryInternal, "event publish canceled").
				WithContext("event_type", evtType.String()).
				Build()
		}
	}
	return nil
}

// Close shuts the bus down and closes all subscription channels.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, typeSubs := range b.subs {
		for _, ch := range typeSubs {
			close(ch)
		}
	}
	b.subs = make(map[reflect.Type]map[uint64]chan any)
}
