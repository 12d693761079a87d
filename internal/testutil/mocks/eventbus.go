package mocks

import (
	"github.com/opik/osem/internal/ports"
	"github.com/stretchr/testify/mock"
)

// EventBus is a mock implementation of ports.EventBus.
type EventBus struct {
	mock.Mock
}

// Publish records the call; it delivers nothing to subscribers.
func (m *EventBus) Publish(n ports.Notification) {
	m.Called(n)
}

// Subscribe subscribes to notifications of a specific type.
func (m *EventBus) Subscribe(eventType ports.EventType, handler ports.EventHandler) func() {
	var args = m.Called(eventType, handler)
	if args.Get(0) == nil {
		return func() {}
	}
	return args.Get(0).(func())
}

// SubscribeAll subscribes to every notification.
func (m *EventBus) SubscribeAll(handler ports.EventHandler) func() {
	var args = m.Called(handler)
	if args.Get(0) == nil {
		return func() {}
	}
	return args.Get(0).(func())
}

var _ ports.EventBus = (*EventBus)(nil)
