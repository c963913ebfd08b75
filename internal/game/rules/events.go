package rules

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// EventType says how an action reached the log: applied fresh, rewound by
// undo, or re-applied by redo.
type EventType string

const (
	EventApplied EventType = "APPLIED"
	EventUndone  EventType = "UNDONE"
	EventRedone  EventType = "REDONE"
	EventAborted EventType = "ABORTED"
)

// Event is the structured description of one history step handed to log
// sinks. Rendering it for humans is the sink's job.
type Event struct {
	Seq       int64
	GameID    string
	Type      EventType
	Action    ActionKind
	Actor     int
	Player    string
	Params    map[string]string
	Summary   string
	Timestamp time.Time
}

// NewEvent creates an event with an empty parameter map.
func NewEvent(eventType EventType, action ActionKind, actor int, player string) Event {
	return Event{
		Type:      eventType,
		Action:    action,
		Actor:     actor,
		Player:    player,
		Params:    make(map[string]string),
		Timestamp: time.Now(),
	}
}

// Listener receives published events.
type Listener func(Event)

type subscription struct {
	handle   int
	action   ActionKind
	callback Listener
}

// EventBus fans events out to subscribers synchronously, in subscription
// order. Each listener gets its own copy of the parameter map.
type EventBus struct {
	mu         sync.RWMutex
	nextHandle int
	subs       []subscription
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	return bus.add("", listener)
}

// SubscribeAction registers a listener for one action kind.
func (bus *EventBus) SubscribeAction(action ActionKind, listener Listener) int {
	if action == "" {
		return -1
	}
	return bus.add(action, listener)
}

func (bus *EventBus) add(action ActionKind, listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.subs = append(bus.subs, subscription{handle: handle, action: action, callback: listener})
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs = slices.DeleteFunc(bus.subs, func(sub subscription) bool {
		return sub.handle == handle
	})
}

// Publish delivers the event to every matching listener. Listeners run
// after the bus lock is released and may unsubscribe themselves.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	subs := slices.Clone(bus.subs)
	bus.mu.RUnlock()

	for _, sub := range subs {
		if sub.action != "" && sub.action != event.Action {
			continue
		}
		delivered := event
		delivered.Params = maps.Clone(event.Params)
		if delivered.Params == nil {
			delivered.Params = make(map[string]string)
		}
		sub.callback(delivered)
	}
}
