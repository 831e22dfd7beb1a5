package schedule

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestFires(t *testing.T) {
	s := New()
	var fired atomic.Int32
	s.Schedule(DirectKey(1), 10*time.Millisecond, nil, func() { fired.Add(1) })

	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })
	if s.Pending(DirectKey(1)) {
		t.Fatal("entry should be removed after firing")
	}
}

func TestAtMostOnePerKey(t *testing.T) {
	s := New()
	var fired atomic.Int32
	key := DirectKey(7)
	s.Schedule(key, 20*time.Millisecond, nil, func() { fired.Add(1) })
	s.Schedule(key, 1*time.Millisecond, nil, func() { fired.Add(100) })

	waitFor(t, time.Second, func() bool { return fired.Load() > 0 })
	if got := fired.Load(); got != 1 {
		t.Fatalf("second Schedule must be a no-op, fired=%d", got)
	}
}

func TestCancelBeforeFire(t *testing.T) {
	s := New()
	var fired atomic.Int32
	key := DirectKey(2)
	s.Schedule(key, 50*time.Millisecond, nil, func() { fired.Add(1) })
	if !s.Cancel(key) {
		t.Fatal("expected Cancel to report an outstanding timer")
	}
	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("cancelled action must never fire")
	}
	if s.Cancel(key) {
		t.Fatal("second Cancel should be a no-op")
	}
}

func TestGuardDropsStaleFire(t *testing.T) {
	s := New()
	var fired atomic.Int32
	key := DirectKey(3)
	s.Schedule(key, 10*time.Millisecond, func() bool { return false }, func() { fired.Add(1) })

	waitFor(t, time.Second, func() bool { return !s.Pending(key) })
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("guard=false must drop the fire")
	}
}

func TestCancelWhereScopesToChat(t *testing.T) {
	s := New()
	var fired atomic.Int32
	s.Schedule(GroupKey(10, 1), time.Hour, nil, func() { fired.Add(1) })
	s.Schedule(GroupKey(10, 2), time.Hour, nil, func() { fired.Add(1) })
	s.Schedule(GroupKey(11, 1), time.Hour, nil, func() { fired.Add(1) })
	s.Schedule(DirectKey(10), time.Hour, nil, func() { fired.Add(1) })

	if n := s.CancelWhere(GroupChatKeys(10)); n != 2 {
		t.Fatalf("expected 2 cancelled for chat 10, got %d", n)
	}
	if !s.Pending(GroupKey(11, 1)) {
		t.Fatal("other chat's group timer must survive")
	}
	if !s.Pending(DirectKey(10)) {
		t.Fatal("direct keyspace must be disjoint from group keyspace")
	}
}

func TestCancelExpiryRace(t *testing.T) {
	// Hammer cancel against expiry; the action must fire at most once per
	// schedule and never after a successful cancel.
	s := New()
	for i := 0; i < 200; i++ {
		key := DirectKey(int64(i))
		var fired atomic.Int32
		s.Schedule(key, time.Millisecond, nil, func() { fired.Add(1) })

		var wg sync.WaitGroup
		wg.Add(1)
		var cancelled bool
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			cancelled = s.Cancel(key)
		}()
		wg.Wait()
		time.Sleep(5 * time.Millisecond)

		got := fired.Load()
		if cancelled && got != 0 {
			t.Fatalf("iteration %d: both cancel and fire won", i)
		}
		if !cancelled && got != 1 {
			t.Fatalf("iteration %d: expected exactly one fire, got %d", i, got)
		}
	}
}

func TestRearmAfterCancel(t *testing.T) {
	s := New()
	var fired atomic.Int32
	key := DirectKey(5)
	s.Schedule(key, time.Hour, nil, func() { fired.Add(100) })
	s.Cancel(key)
	s.Schedule(key, 5*time.Millisecond, nil, func() { fired.Add(1) })

	waitFor(t, time.Second, func() bool { return fired.Load() > 0 })
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected only re-armed action to fire, got %d", got)
	}
}
