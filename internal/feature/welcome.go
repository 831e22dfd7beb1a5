package feature

import (
	"context"
	"log/slog"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/guard"
	"github.com/tgsitter/tgsitter/internal/platform"
)

const welcomeMessage = "Welcome! I'm a personal assistant bot.\n\n" +
	"Commands:\n" +
	"/ai <question> - ask the assistant\n" +
	"/clear - reset the assistant conversation\n" +
	"/start - show this message\n\n" +
	"Plain messages get an automatic reply when the owner is away."

// Welcome replies to /start with a fixed templated message. Stateless.
type Welcome struct {
	guard *guard.Counter
	feed  *bus.Feed
	subs  []int
}

// NewWelcome creates the welcome module.
func NewWelcome(d Deps) *Welcome {
	return &Welcome{guard: d.Guard, feed: d.Feed}
}

func (m *Welcome) Name() string { return "welcome" }

func (m *Welcome) Attach(c platform.Client) {
	id := c.Subscribe(
		platform.All(platform.Private(), platform.Incoming(), platform.Command("start")),
		m.handleStart,
	)
	m.subs = append(m.subs, id)
}

func (m *Welcome) Detach(c platform.Client) {
	for _, id := range m.subs {
		c.Unsubscribe(id)
	}
	m.subs = nil
}

func (m *Welcome) handleStart(ctx context.Context, c platform.Client, ev platform.Event) {
	slog.Info("start command", "chat", ev.ChatID, "from", ev.SenderName)
	if err := send(ctx, c, m.guard, ev.ChatID, welcomeMessage); err != nil {
		return
	}
	m.feed.Terminal("welcome message sent to " + ev.SenderName)
}
