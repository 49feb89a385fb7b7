package domain

import (
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStoreCreated EventType = "store_created"
	EventStoreCleared EventType = "store_cleared"
	EventDispatch     EventType = "dispatch"
	EventRollback     EventType = "rollback"
	EventNotify       EventType = "notify"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NewEventBase stamps an event of type t with the current time.
func NewEventBase(t EventType) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t}
}

// StoreEvent is emitted when a store is created or cleared.
type StoreEvent struct {
	EventBase
	Slices []string `json:"slices"`
}

// DispatchEvent describes one committed or rolled back dispatch.
type DispatchEvent struct {
	EventBase
	Slice    string        `json:"slice"`
	Action   string        `json:"action"`
	Changed  []string      `json:"changed,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// NotifyEvent is emitted once per notified (slice, field) pair.
type NotifyEvent struct {
	EventBase
	Slice       string `json:"slice"`
	Field       string `json:"field"`
	Subscribers int    `json:"subscribers"`
	Forced      bool   `json:"forced,omitempty"`
}

// LifecycleHooks defines callbacks for store observability.
// Hooks run synchronously inside the dispatch pipeline and must not dispatch.
type LifecycleHooks struct {
	OnStoreCreated func(*StoreEvent)
	OnStoreCleared func(*StoreEvent)
	OnDispatch     func(*DispatchEvent)
	OnRollback     func(*DispatchEvent)
	OnNotify       func(*NotifyEvent)
}

// ComposeHooks fans every event out to each of the given hooks in order.
func ComposeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStoreCreated: func(e *StoreEvent) {
			for _, h := range hooks {
				if h.OnStoreCreated != nil {
					h.OnStoreCreated(e)
				}
			}
		},
		OnStoreCleared: func(e *StoreEvent) {
			for _, h := range hooks {
				if h.OnStoreCleared != nil {
					h.OnStoreCleared(e)
				}
			}
		},
		OnDispatch: func(e *DispatchEvent) {
			for _, h := range hooks {
				if h.OnDispatch != nil {
					h.OnDispatch(e)
				}
			}
		},
		OnRollback: func(e *DispatchEvent) {
			for _, h := range hooks {
				if h.OnRollback != nil {
					h.OnRollback(e)
				}
			}
		},
		OnNotify: func(e *NotifyEvent) {
			for _, h := range hooks {
				if h.OnNotify != nil {
					h.OnNotify(e)
				}
			}
		},
	}
}
