// Package eventbus implements ports.EventBus, the store's change
// notification mechanism.
package eventbus

import (
	"sync"

	"github.com/opik/osem/internal/ports"
)

// Dispatcher marshals a handler call onto whatever execution context a
// host embeds the engine in (a UI thread, an actor mailbox). The default
// bus runs handlers inline, matching the store's "marshal to the caller's
// context, or inline if none" contract.
type Dispatcher func(run func())

func inline(run func()) { run() }

// Bus implements ports.EventBus with per-type and catch-all subscribers.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[ports.EventType][]*subscription
	allHandlers []*subscription
	nextID      int
	dispatch    Dispatcher
}

type subscription struct {
	id      int
	handler ports.EventHandler
}

// New creates a Bus that dispatches handlers inline on the publishing
// goroutine.
func New() *Bus {
	return NewWithDispatcher(inline)
}

// NewWithDispatcher creates a Bus whose handlers run via dispatch, for a
// host that needs notifications marshalled onto its own thread.
func NewWithDispatcher(dispatch Dispatcher) *Bus {
	if dispatch == nil {
		dispatch = inline
	}
	return &Bus{
		handlers: make(map[ports.EventType][]*subscription),
		dispatch: dispatch,
	}
}

// Publish delivers n to every matching subscriber. Unlike the teacher's
// bus (which spawns a goroutine per handler unconditionally), delivery
// here preserves per-event mutation ordering: the store's EventChanged
// notifications for one event must arrive in mutation order, which an
// unconditional goroutine spawn cannot guarantee.
func (b *Bus) Publish(n ports.Notification) {
	b.mu.RLock()
	typed := append([]*subscription(nil), b.handlers[n.Type()]...)
	all := append([]*subscription(nil), b.allHandlers...)
	b.mu.RUnlock()

	for _, s := range typed {
		h := s.handler
		b.dispatch(func() { h(n) })
	}
	for _, s := range all {
		h := s.handler
		b.dispatch(func() { h(n) })
	}
}

// Subscribe registers handler for one event type and returns a function
// that removes it.
func (b *Bus) Subscribe(eventType ports.EventType, handler ports.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler}
	b.handlers[eventType] = append(b.handlers[eventType], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[eventType] = removeByID(b.handlers[eventType], sub.id)
	}
}

// SubscribeAll registers handler for every event type and returns a
// function that removes it.
func (b *Bus) SubscribeAll(handler ports.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler}
	b.allHandlers = append(b.allHandlers, sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.allHandlers = removeByID(b.allHandlers, sub.id)
	}
}

func removeByID(subs []*subscription, id int) []*subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

var _ ports.EventBus = (*Bus)(nil)
