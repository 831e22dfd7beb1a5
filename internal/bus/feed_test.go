package bus

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	f := NewFeed()
	ch1, cancel1 := f.Subscribe()
	ch2, cancel2 := f.Subscribe()
	defer cancel1()
	defer cancel2()

	f.Terminal("hello")

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != KindTerminal || ev.Message != "hello" {
				t.Fatalf("subscriber %d: unexpected event %+v", i, ev)
			}
			if ev.TraceID == "" || ev.Timestamp.IsZero() {
				t.Fatalf("subscriber %d: trace id and timestamp must be filled", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event", i)
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	f := NewFeed()
	ch, cancel := f.Subscribe()
	cancel()
	cancel() // idempotent

	if f.SubscriberCount() != 0 {
		t.Fatal("expected zero subscribers after cancel")
	}
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after cancel")
	}

	// Publishing to a feed with no subscribers must not panic or block.
	f.Lifecycle("done", map[string]any{"status": "success"})
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	f := NewFeed()
	_, cancel := f.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ { // more than the channel buffer
			f.Terminal("line")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
