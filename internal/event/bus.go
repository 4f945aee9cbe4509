package event

import (
	"log"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine, so an engine step does not proceed until its
// observers have returned; handlers must therefore be fast.
type Handler func(Event)

// wildcard is the subscription key that matches every event type.
const wildcard = "*"

type subscription struct {
	id      string
	handler Handler
}

// Bus routes events from the engines (review, debate, consensus,
// adjudication, workflow) to whoever subscribed, without the engines
// knowing their observers. Dispatch is synchronous and in registration
// order. Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID atomic.Uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for one event type (e.g.
// "debate.resolved"). The returned ID releases the subscription via
// Unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := "sub-" + strconv.FormatUint(b.nextID.Add(1), 10)
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers a handler that sees every published event,
// after the type-specific handlers for each one.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe releases a subscription. It reports whether the ID was
// still registered.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		for i, sub := range subs {
			if sub.id == id {
				b.subs[eventType] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish delivers an event to its type-specific handlers, then to the
// wildcard handlers, each group in registration order. The handler
// lists are snapshotted under the read lock, so handlers may subscribe
// or unsubscribe without deadlocking; such changes take effect on the
// next publish.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	matched := snapshot(b.subs[event.EventType()])
	catchAll := snapshot(b.subs[wildcard])
	b.mu.RUnlock()

	for _, sub := range matched {
		b.dispatch(sub.handler, event)
	}
	for _, sub := range catchAll {
		b.dispatch(sub.handler, event)
	}
}

func snapshot(subs []subscription) []subscription {
	out := make([]subscription, len(subs))
	copy(out, subs)
	return out
}

// dispatch isolates handler panics: a crashing observer is logged with
// its stack and the remaining handlers still run. The engines treat
// publishing as infallible.
func (b *Bus) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: handler for %s panicked: %v\n%s",
				event.EventType(), r, debug.Stack())
		}
	}()
	handler(event)
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]subscription)
}

// SubscriptionCount returns the number of live subscriptions across
// all event types, wildcard included.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subs {
		count += len(subs)
	}
	return count
}
