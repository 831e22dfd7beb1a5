// Package bus provides the async event feed between the bot core and the
// operator console.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds pushed to the console.
const (
	KindTerminal  = "terminal"  // free-form console output line
	KindLifecycle = "lifecycle" // async start/stop result for a session
	KindActivity  = "activity"  // per-conversation bot activity note
)

// Event is one console feed entry.
type Event struct {
	Kind      string         `json:"kind"`
	TraceID   string         `json:"trace_id"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Feed fans events out to console subscribers. Slow subscribers drop events
// rather than blocking publishers.
type Feed struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Event)}
}

// Publish delivers an event to every subscriber. Missing trace ids and
// timestamps are filled in.
func (f *Feed) Publish(ev Event) {
	if ev.TraceID == "" {
		ev.TraceID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop.
		}
	}
}

// Terminal publishes a terminal output line.
func (f *Feed) Terminal(message string) {
	f.Publish(Event{Kind: KindTerminal, Message: message})
}

// Lifecycle publishes an async session lifecycle result.
func (f *Feed) Lifecycle(message string, payload map[string]any) {
	f.Publish(Event{Kind: KindLifecycle, Message: message, Payload: payload})
}

// Subscribe registers a buffered subscriber channel. The returned cancel
// function removes the subscription and closes the channel.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	ch := make(chan Event, 64)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if existing, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// SubscriberCount reports the number of active subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
