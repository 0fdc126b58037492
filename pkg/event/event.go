// pkg/event/event.go
package event

import (
	"sync"

	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// Type represents the type of event
type Type string

// Common event types
const (
	EntityAdded       Type = "entity_added"
	EntityRemoved     Type = "entity_removed"
	PlanetAdded       Type = "planet_added"
	PlanetRemoved     Type = "planet_removed"
	ShipLaunched      Type = "ship_launched"
	TimeChanged       Type = "time_changed"
	SolverDiverged    Type = "solver_diverged"
	SimulationStarted Type = "simulation_started"
	SimulationStopped Type = "simulation_stopped"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription identifies a registered handler. Cancel removes it.
type Subscription struct {
	ID     uint64
	Cancel func()
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	handlers map[Type][]subscriber
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Cancel: func() { b.unsubscribe(eventType, id) },
	}
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// Publish sends an event to all subscribed handlers. Handlers run
// synchronously on the caller's goroutine.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Specific event implementations

// BodyEvent reports a change to one of the world's lists.
type BodyEvent struct {
	BaseEvent
	Index int
	Count int
}

// NewBodyEvent creates a new body event. Count is the list length after the change.
func NewBodyEvent(eventType Type, source interface{}, index, count int) *BodyEvent {
	return &BodyEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		Index: index,
		Count: count,
	}
}

// TimeEvent carries the simulation clock after a step or an explicit set.
type TimeEvent struct {
	BaseEvent
	Previous float64
	Time     float64
}

// NewTimeEvent creates a new time event
func NewTimeEvent(source interface{}, previous, now float64) *TimeEvent {
	return &TimeEvent{
		BaseEvent: BaseEvent{
			EventType: TimeChanged,
			Source:    source,
		},
		Previous: previous,
		Time:     now,
	}
}

// SolverEvent wraps a Kepler solve that hit the iteration cap or had no
// closed form.
type SolverEvent struct {
	BaseEvent
	Report physics.SolveReport
}

// NewSolverEvent creates a new solver event
func NewSolverEvent(source interface{}, report physics.SolveReport) *SolverEvent {
	return &SolverEvent{
		BaseEvent: BaseEvent{
			EventType: SolverDiverged,
			Source:    source,
		},
		Report: report,
	}
}
