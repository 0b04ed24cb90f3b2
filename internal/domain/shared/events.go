// Package shared holds the domain event contract used across aggregates.
package shared

import (
	"sync"
	"time"
)

// DomainEvent represents an event that has occurred in the domain.
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// EventHandler handles domain events.
type EventHandler func(event DomainEvent) error

// EventDispatcher dispatches domain events to handlers.
type EventDispatcher interface {
	Dispatch(event DomainEvent) error
	Register(eventName string, handler EventHandler)
}

// Recorder collects events for a single run so the orchestrator can mirror
// aggregate lifecycle transitions into the progress stream. Safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []DomainEvent
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends events.
func (r *Recorder) Record(events ...DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

// Drain returns and clears the recorded events in arrival order.
func (r *Recorder) Drain() []DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}
