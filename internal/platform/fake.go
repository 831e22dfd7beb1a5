package platform

import (
	"context"
	"sync"
)

// Fake is an in-memory Client for tests. Events injected with Deliver are
// dispatched synchronously to matching subscriptions; outbound sends are
// recorded and re-delivered as outgoing events so send-echo handlers run.
type Fake struct {
	mu      sync.Mutex
	nextSub int
	subs    map[int]fakeSub

	connected  bool
	authorized bool
	profile    Profile

	// Auth scripting knobs.
	Challenge      string
	CodeErr        error // returned by VerifyCode; nil means success
	PasswordErr    error // returned by VerifyPassword; nil means success
	RequestCodeErr error
	StartErr       error // overrides the authorized check when set

	sent []SentMessage
}

type fakeSub struct {
	filter  Filter
	handler Handler
}

// SentMessage records one SendMessage call.
type SentMessage struct {
	ChatID int64
	Text   string
}

// NewFake returns a Fake with the given profile. authorized controls whether
// Start succeeds without a code exchange.
func NewFake(profile Profile, authorized bool) *Fake {
	return &Fake{
		subs:       make(map[int]fakeSub),
		authorized: authorized,
		profile:    profile,
		Challenge:  "challenge-1",
	}
}

func (f *Fake) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *Fake) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	if !f.authorized {
		return ErrNotAuthorized
	}
	f.connected = true
	return nil
}

func (f *Fake) Stop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) RequestCode(_ context.Context, _ string) (string, error) {
	if f.RequestCodeErr != nil {
		return "", f.RequestCodeErr
	}
	return f.Challenge, nil
}

func (f *Fake) VerifyCode(_ context.Context, _, _, _ string) error {
	if f.CodeErr != nil {
		return f.CodeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorized = true
	return nil
}

func (f *Fake) VerifyPassword(_ context.Context, _ string) error {
	if f.PasswordErr != nil {
		return f.PasswordErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorized = true
	return nil
}

func (f *Fake) Profile(_ context.Context) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized {
		return Profile{}, ErrNotAuthorized
	}
	return f.profile, nil
}

func (f *Fake) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, SentMessage{ChatID: chatID, Text: text})
	msgID := int64(1000 + len(f.sent))
	f.mu.Unlock()

	// Echo the send back as an outgoing event, like the real platform does.
	f.Deliver(ctx, Event{
		ChatID:    chatID,
		MessageID: msgID,
		Text:      text,
		Outgoing:  true,
	})
	return nil
}

// Sent returns a copy of all recorded sends.
func (f *Fake) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *Fake) Subscribe(filter Filter, h Handler) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	f.subs[f.nextSub] = fakeSub{filter: filter, handler: h}
	return f.nextSub
}

func (f *Fake) Unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

// SubscriptionCount reports how many subscriptions are registered.
func (f *Fake) SubscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Deliver dispatches an event to every matching subscription, synchronously
// and in registration order.
func (f *Fake) Deliver(ctx context.Context, ev Event) {
	f.mu.Lock()
	var matched []Handler
	for id := 1; id <= f.nextSub; id++ {
		sub, ok := f.subs[id]
		if !ok {
			continue
		}
		if sub.filter == nil || sub.filter(ev) {
			matched = append(matched, sub.handler)
		}
	}
	f.mu.Unlock()

	for _, h := range matched {
		h(ctx, f, ev)
	}
}
