// Package convstate holds per-conversation reply state: pending-reply
// markers, conversation mode, and bounded AI history.
package convstate

import (
	"sync"
	"time"
)

// DefaultMaxHistory caps the number of history turns kept per conversation.
const DefaultMaxHistory = 50

// Roles used in history turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one role-tagged history entry.
type Turn struct {
	Role    string
	Content string
}

// PendingReply marks the inbound message a delayed reply is armed for.
// At most one exists per conversation; a newer message overwrites it.
type PendingReply struct {
	MessageID int64
	Timestamp time.Time
}

// GroupKey identifies a pending group reply by conversation and message.
type GroupKey struct {
	ChatID    int64
	MessageID int64
}

// Store owns all mutable conversation state for one session. A single mutex
// serializes handlers that may run concurrently for the same conversation.
type Store struct {
	mu           sync.Mutex
	pending      map[int64]PendingReply
	groupPending map[GroupKey]PendingReply
	mode         map[int64]bool
	history      map[int64][]Turn
	maxHistory   int
	systemPair   [2]Turn
}

// New creates a Store. maxHistory <= 2 falls back to DefaultMaxHistory.
// systemPair is the fixed instruction pair seeded as the first two history
// entries of every conversation.
func New(maxHistory int, systemPair [2]Turn) *Store {
	if maxHistory <= 2 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		pending:      make(map[int64]PendingReply),
		groupPending: make(map[GroupKey]PendingReply),
		mode:         make(map[int64]bool),
		history:      make(map[int64][]Turn),
		maxHistory:   maxHistory,
		systemPair:   systemPair,
	}
}

// SetPending records (overwriting) the pending reply marker for a chat.
func (s *Store) SetPending(chatID, messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[chatID] = PendingReply{MessageID: messageID, Timestamp: time.Now()}
}

// Pending returns the marker for a chat.
func (s *Store) Pending(chatID int64) (PendingReply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[chatID]
	return p, ok
}

// ClearPending removes the marker and reports whether one existed.
func (s *Store) ClearPending(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[chatID]
	delete(s.pending, chatID)
	return ok
}

// PendingMatches reports whether the marker still references messageID.
// Used as the scheduler's stale-fire guard.
func (s *Store) PendingMatches(chatID, messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[chatID]
	return ok && p.MessageID == messageID
}

// SetGroupPending records a pending group reply. Reports false if the key
// already has one (single slot per key).
func (s *Store) SetGroupPending(chatID, messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := GroupKey{ChatID: chatID, MessageID: messageID}
	if _, ok := s.groupPending[key]; ok {
		return false
	}
	s.groupPending[key] = PendingReply{MessageID: messageID, Timestamp: time.Now()}
	return true
}

// GroupPending reports whether the (chat, message) key has a pending reply.
func (s *Store) GroupPending(chatID, messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.groupPending[GroupKey{ChatID: chatID, MessageID: messageID}]
	return ok
}

// ClearGroupPending removes one group marker.
func (s *Store) ClearGroupPending(chatID, messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := GroupKey{ChatID: chatID, MessageID: messageID}
	_, ok := s.groupPending[key]
	delete(s.groupPending, key)
	return ok
}

// ClearGroupPendingForChat removes every group marker scoped to the chat,
// regardless of message id, and returns the count removed.
func (s *Store) ClearGroupPendingForChat(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.groupPending {
		if key.ChatID == chatID {
			delete(s.groupPending, key)
			n++
		}
	}
	return n
}

// SetMode activates conversation mode for a chat.
func (s *Store) SetMode(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode[chatID] = true
}

// ModeActive reports whether conversation mode is active for a chat.
func (s *Store) ModeActive(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode[chatID]
}

// ClearMode deactivates conversation mode and reports whether it was active.
func (s *Store) ClearMode(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.mode[chatID]
	delete(s.mode, chatID)
	return active
}

// Reset clears every pending marker and conversation mode flag. History is
// kept; it only feeds AI context.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[int64]PendingReply)
	s.groupPending = make(map[GroupKey]PendingReply)
	s.mode = make(map[int64]bool)
}

// AppendTurn adds a history turn, seeding the system pair on first use.
// When the cap is exceeded the oldest non-system turns are evicted; the
// system pair always remains the first two entries.
func (s *Store) AppendTurn(chatID int64, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[chatID]
	if len(h) == 0 {
		h = append(h, s.systemPair[0], s.systemPair[1])
	}
	h = append(h, Turn{Role: role, Content: content})
	if over := len(h) - s.maxHistory; over > 0 {
		h = append(h[:2], h[2+over:]...)
	}
	s.history[chatID] = h
}

// History returns a copy of the chat's history turns.
func (s *Store) History(chatID int64) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[chatID]
	out := make([]Turn, len(h))
	copy(out, h)
	return out
}

// ClearHistory drops the chat's history and reports whether any existed.
func (s *Store) ClearHistory(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.history[chatID]
	delete(s.history, chatID)
	return ok
}
