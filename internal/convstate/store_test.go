package convstate

import (
	"fmt"
	"testing"
)

var pair = [2]Turn{
	{Role: RoleUser, Content: "You are a helpful assistant."},
	{Role: RoleModel, Content: "Understood."},
}

func TestPendingSingleSlot(t *testing.T) {
	s := New(10, pair)
	s.SetPending(1, 100)
	s.SetPending(1, 101)

	p, ok := s.Pending(1)
	if !ok {
		t.Fatal("expected a pending reply")
	}
	if p.MessageID != 101 {
		t.Fatalf("newer message must overwrite, got %d", p.MessageID)
	}
	if !s.PendingMatches(1, 101) || s.PendingMatches(1, 100) {
		t.Fatal("PendingMatches must track the latest message id")
	}
	if !s.ClearPending(1) {
		t.Fatal("ClearPending should report removal")
	}
	if s.ClearPending(1) {
		t.Fatal("second ClearPending should be a no-op")
	}
}

func TestGroupPendingKeyedByMessage(t *testing.T) {
	s := New(10, pair)
	if !s.SetGroupPending(5, 1) {
		t.Fatal("first set should succeed")
	}
	if s.SetGroupPending(5, 1) {
		t.Fatal("same key must be single-slot")
	}
	if !s.SetGroupPending(5, 2) {
		t.Fatal("different message id is a different key")
	}
	s.SetGroupPending(6, 1)

	if n := s.ClearGroupPendingForChat(5); n != 2 {
		t.Fatalf("expected 2 cleared for chat 5, got %d", n)
	}
	if !s.GroupPending(6, 1) {
		t.Fatal("other chat's entry must survive")
	}
}

func TestMode(t *testing.T) {
	s := New(10, pair)
	if s.ModeActive(1) {
		t.Fatal("mode should start inactive")
	}
	s.SetMode(1)
	if !s.ModeActive(1) {
		t.Fatal("expected mode active")
	}
	if !s.ClearMode(1) {
		t.Fatal("ClearMode should report it was active")
	}
	if s.ClearMode(1) {
		t.Fatal("ClearMode on inactive chat should report false")
	}
}

func TestReset(t *testing.T) {
	s := New(10, pair)
	s.SetPending(1, 100)
	s.SetGroupPending(2, 1)
	s.SetMode(3)
	s.AppendTurn(4, RoleUser, "hi")

	s.Reset()

	if _, ok := s.Pending(1); ok {
		t.Fatal("pending should be cleared")
	}
	if s.GroupPending(2, 1) || s.ModeActive(3) {
		t.Fatal("group pending and mode should be cleared")
	}
	if len(s.History(4)) == 0 {
		t.Fatal("history must survive Reset")
	}
}

func TestHistorySeedsSystemPair(t *testing.T) {
	s := New(10, pair)
	s.AppendTurn(1, RoleUser, "hello")

	h := s.History(1)
	if len(h) != 3 {
		t.Fatalf("expected pair + turn, got %d entries", len(h))
	}
	if h[0] != pair[0] || h[1] != pair[1] {
		t.Fatal("system pair must be the first two entries")
	}
}

func TestHistoryEvictsOldestKeepingPair(t *testing.T) {
	const cap = 6
	s := New(cap, pair)
	for i := 0; i < 20; i++ {
		s.AppendTurn(1, RoleUser, fmt.Sprintf("turn-%d", i))
	}

	h := s.History(1)
	if len(h) != cap {
		t.Fatalf("history length %d exceeds cap %d", len(h), cap)
	}
	if h[0] != pair[0] || h[1] != pair[1] {
		t.Fatal("system pair must survive eviction")
	}
	if h[2].Content != "turn-16" || h[len(h)-1].Content != "turn-19" {
		t.Fatalf("oldest turns must be evicted first, got %v", h)
	}
}

func TestHistoryCopyIsolation(t *testing.T) {
	s := New(10, pair)
	s.AppendTurn(1, RoleUser, "hello")
	h := s.History(1)
	h[0].Content = "mutated"
	if s.History(1)[0].Content == "mutated" {
		t.Fatal("History must return a copy")
	}
}

func TestClearHistory(t *testing.T) {
	s := New(10, pair)
	s.AppendTurn(1, RoleUser, "hello")
	if !s.ClearHistory(1) {
		t.Fatal("expected ClearHistory to report removal")
	}
	if s.ClearHistory(1) {
		t.Fatal("second ClearHistory should report false")
	}
	if len(s.History(1)) != 0 {
		t.Fatal("history should be empty after clear")
	}
}
