// Package schedule runs cancellable delayed actions keyed by conversation.
package schedule

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Key identifies one pending delayed action. Direct and group keys live in
// disjoint keyspaces.
type Key string

// DirectKey keys a delayed reply for a direct conversation.
func DirectKey(chatID int64) Key {
	return Key(fmt.Sprintf("direct:%d", chatID))
}

// GroupKey keys a delayed reply for a specific group mention.
func GroupKey(chatID, messageID int64) Key {
	return Key(fmt.Sprintf("group:%d:%d", chatID, messageID))
}

// GroupChatKeys matches every group key scoped to one conversation.
func GroupChatKeys(chatID int64) func(Key) bool {
	prefix := fmt.Sprintf("group:%d:", chatID)
	return func(k Key) bool { return strings.HasPrefix(string(k), prefix) }
}

type entry struct {
	timer *time.Timer
}

// Scheduler arms at most one timer per key. On expiry the caller-supplied
// guard is re-checked before the action fires, so stale timers whose state
// was superseded drop silently. Cancel and expiry racing resolve to at most
// one winner.
type Scheduler struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{entries: make(map[Key]*entry)}
}

// Schedule arms a delayed action for key. A no-op if the key already has an
// outstanding timer. guard runs at expiry after the entry is claimed; a false
// result drops the fire. guard may be nil.
func (s *Scheduler) Schedule(key Key, delay time.Duration, guard func() bool, action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return
	}

	e := &entry{}
	e.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.entries[key]
		if !ok || current != e {
			// Cancelled, or superseded after a cancel.
			s.mu.Unlock()
			return
		}
		delete(s.entries, key)
		s.mu.Unlock()

		if guard != nil && !guard() {
			slog.Debug("dropping stale timer", "key", string(key))
			return
		}
		action()
	})
	s.entries[key] = e
}

// Cancel aborts the outstanding timer for key, if any. Idempotent.
// Reports whether a timer was cancelled.
func (s *Scheduler) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// CancelWhere cancels every outstanding timer whose key matches the
// predicate and returns the number cancelled.
func (s *Scheduler) CancelWhere(match func(Key) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if match(k) {
			e.timer.Stop()
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// CancelAll cancels every outstanding timer.
func (s *Scheduler) CancelAll() int {
	return s.CancelWhere(func(Key) bool { return true })
}

// Pending reports whether key has an outstanding timer.
func (s *Scheduler) Pending(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of outstanding timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
