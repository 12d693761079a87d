package ports

import "time"

// Notification is a change notification that can be published and
// subscribed to. This keeps the store decoupled from whatever observes it
// (a UI, a catch-up worker, a test).
type Notification interface {
	Type() EventType
	Timestamp() time.Time
}

// EventType identifies the reason a Notification was emitted.
type EventType string

const (
	EventTypeCreated      EventType = "created"
	EventTypeUpdated      EventType = "updated"
	EventTypeImported     EventType = "imported"
	EventTypeArchived     EventType = "archived"
	EventTypeReopened     EventType = "reopened"
	EventTypeDeleted      EventType = "deleted"
	EventTypeMailAppended EventType = "mail_appended"
	EventTypeMailUpdated  EventType = "mail_updated"
	EventTypeMailRemoved  EventType = "mail_removed"
)

// BaseEvent provides the common Type/Timestamp fields.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBaseEvent creates a new base event stamped with the given instant.
func NewBaseEvent(t EventType, at time.Time) BaseEvent {
	return BaseEvent{EventType: t, Time: at}
}

// EventChanged is emitted after a store mutation commits. Snapshot is a
// deep copy: recipients never observe a live reference into the store.
type EventChanged struct {
	BaseEvent
	Snapshot *Event
	Reason   EventType
}

// EventHandler is a function that handles change notifications.
type EventHandler func(Notification)

// EventBus allows publishing and subscribing to change notifications.
type EventBus interface {
	// Publish delivers n to all subscribers. Implementations may deliver
	// synchronously (the default, matching the store's "marshal to the
	// caller's context, or inline" contract) or asynchronously if
	// constructed with a dispatcher.
	Publish(n Notification)

	// Subscribe subscribes to events of a specific type.
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func())

	// SubscribeAll subscribes to every event regardless of type.
	SubscribeAll(handler EventHandler) (unsubscribe func())
}
