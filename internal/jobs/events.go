package jobs

import (
	"sync"
	"time"

	"video-transcriber/internal/domain"
)

// EventType classifies messages emitted during a run.
type EventType string

const (
	EventTypeStatus EventType = "status"
	EventTypeResult EventType = "result"
	EventTypeError  EventType = "error"
)

// Event is a sequenced progress record read by polling clients.
type Event struct {
	Seq       int64              `json:"seq"`
	Timestamp time.Time          `json:"timestamp"`
	RunID     string             `json:"runId"`
	SessionID string             `json:"sessionId,omitempty"`
	Type      EventType          `json:"type"`
	Status    domain.RunStatus   `json:"status,omitempty"`
	Progress  int                `json:"progress"`
	Message   string             `json:"message,omitempty"`
	Failure   domain.FailureKind `json:"failure,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence, timestamp and progress.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Progress == 0 {
		event.Progress = event.Status.Progress()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	return b.filter(seq, func(Event) bool { return true })
}

// RunSince returns events of runID with sequence strictly greater than seq.
func (b *EventBus) RunSince(runID string, seq int64) []Event {
	return b.filter(seq, func(e Event) bool { return e.RunID == runID })
}

func (b *EventBus) filter(seq int64, keep func(Event) bool) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq && keep(event) {
			out = append(out, event)
		}
	}
	return out
}
