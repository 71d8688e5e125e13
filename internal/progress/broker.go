package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a progress event.
type Kind string

const (
	KindProgress Kind = "progress"
	KindError    Kind = "error"
	KindComplete Kind = "complete"
)

// Event is one observer-facing update from a run.
type Event struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message,omitempty"`
	Percent int       `json:"percent"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Sink receives events out-of-band (webhook, log). Publish is
// fire-and-forget; errors are the sink's problem.
type Sink interface {
	Publish(ctx context.Context, runID string, ev Event)
}

// Broker fans a run's events out to in-process subscribers and configured
// sinks. Owned by the run; no process-wide registry. Publishing never blocks:
// a subscriber that falls behind misses events.
type Broker struct {
	runID string
	sinks []Sink

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBroker creates a broker for one run.
func NewBroker(runID string, sinks ...Sink) *Broker {
	return &Broker{
		runID: runID,
		sinks: sinks,
		subs:  make(map[int]chan Event),
	}
}

// RunID returns the run this broker belongs to.
func (b *Broker) RunID() string {
	return b.runID
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. The channel is buffered; slow consumers drop events rather than
// stalling the run.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish delivers an event to all subscribers and sinks.
func (b *Broker) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
	sinks := b.sinks
	b.mu.Unlock()

	for _, s := range sinks {
		go func(s Sink) {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Warn("progress: sink panicked", zap.Any("panic", r))
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.Publish(ctx, b.runID, ev)
		}(s)
	}
}

// Progress publishes a Progress-kind event.
func (b *Broker) Progress(percent int, message string) {
	b.Publish(Event{Kind: KindProgress, Percent: percent, Message: message})
}

// Error publishes an Error-kind event.
func (b *Broker) Error(message string) {
	b.Publish(Event{Kind: KindError, Message: message})
}

// Complete publishes the terminal event and closes all subscriber channels.
func (b *Broker) Complete(message string, payload any) {
	b.Publish(Event{Kind: KindComplete, Percent: 100, Message: message, Payload: payload})

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
