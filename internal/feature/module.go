// Package feature implements the chat behavior modules attached to an
// active session: welcome command, AI command, and smart auto-reply.
package feature

import (
	"context"
	"log/slog"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/config"
	"github.com/tgsitter/tgsitter/internal/convstate"
	"github.com/tgsitter/tgsitter/internal/guard"
	"github.com/tgsitter/tgsitter/internal/platform"
	"github.com/tgsitter/tgsitter/internal/provider"
	"github.com/tgsitter/tgsitter/internal/schedule"
)

// Module is a unit of chat behavior attached to an active session's event
// stream. Attach order matters only for priority of overlapping filters.
type Module interface {
	// Name returns the module name.
	Name() string
	// Attach registers the module's handlers on the client.
	Attach(c platform.Client)
	// Detach removes the module's handlers and clears its state.
	Detach(c platform.Client)
}

// Deps bundles the per-session collaborators shared by the modules.
type Deps struct {
	Store   *convstate.Store
	Sched   *schedule.Scheduler
	Guard   *guard.Counter
	Feed    *bus.Feed
	Chatter provider.Chatter // nil when no AI backend is configured
	AI      config.AIConfig
	Reply   config.ReplyConfig
}

// DefaultModules returns the ordered module list for a session: welcome
// first, then the AI command, then auto-reply.
func DefaultModules(d Deps) []Module {
	return []Module{
		NewWelcome(d),
		NewAIChat(d),
		NewAutoReply(d),
	}
}

// send delivers a programmatic message under the send guard so that
// outgoing-echo handlers do not mistake it for a manual operator reply.
func send(ctx context.Context, c platform.Client, g *guard.Counter, chatID int64, text string) error {
	g.Begin()
	defer g.End()
	if err := c.SendMessage(ctx, chatID, text); err != nil {
		slog.Error("send failed", "chat", chatID, "error", err)
		return err
	}
	return nil
}
