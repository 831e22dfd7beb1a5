package feature

import (
	"context"
	"log/slog"
	"time"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/convstate"
	"github.com/tgsitter/tgsitter/internal/guard"
	"github.com/tgsitter/tgsitter/internal/platform"
	"github.com/tgsitter/tgsitter/internal/schedule"
)

const (
	busyMessageAI = "I may be busy right now.\n\n" +
		"Feel free to keep chatting - the assistant will answer for me until I'm back. Thank you!"
	busyMessagePlain = "I may be busy right now.\n\n" +
		"I'll reply as soon as I can. (Assistant replies are currently disabled.) Thank you!"
	busyMessageGroup = "I may be busy right now.\n\n" +
		"Please send me a direct message if it's urgent. Thank you!"
	modeUnavailableNotice = "AI features are currently unavailable: no API key is configured.\n\n" +
		"Set one to enable assistant replies."
	stopAllNotice = "Auto-reply stopped. All conversation modes and pending replies were cleared."

	// sendTimeout bounds sends issued from expired timers, which have no
	// inbound request context.
	sendTimeout = 30 * time.Second
)

// AutoReply arms a delayed busy reply for unanswered private messages and
// group mentions, answers instantly via the assistant once conversation
// mode is active, and cancels pending replies on manual operator messages.
type AutoReply struct {
	store         *convstate.Store
	sched         *schedule.Scheduler
	guard         *guard.Counter
	feed          *bus.Feed
	resp          responder
	directTimeout time.Duration
	groupTimeout  time.Duration
	busyMessage   string
	subs          []int
}

// NewAutoReply creates the auto-reply module.
func NewAutoReply(d Deps) *AutoReply {
	busy := busyMessagePlain
	if d.Chatter != nil {
		busy = busyMessageAI
	}
	return &AutoReply{
		store:         d.Store,
		sched:         d.Sched,
		guard:         d.Guard,
		feed:          d.Feed,
		resp:          responder{chatter: d.Chatter, store: d.Store, guard: d.Guard, ai: d.AI},
		directTimeout: d.Reply.DirectTimeout,
		groupTimeout:  d.Reply.GroupTimeout,
		busyMessage:   busy,
	}
}

func (m *AutoReply) Name() string { return "autoreply" }

func (m *AutoReply) Attach(c platform.Client) {
	m.subs = append(m.subs,
		c.Subscribe(
			platform.All(platform.Private(), platform.Incoming(), platform.Text(), platform.NotCommand()),
			m.handleIncoming,
		),
		// Commands are not excluded here: any manual outgoing text,
		// "/"-prefixed or not, cancels the pending reply and clears
		// conversation mode. The /stopall handler's full reset makes
		// the overlap harmless.
		c.Subscribe(
			platform.All(platform.Private(), platform.Outgoing(), platform.Text()),
			m.handleOutgoing,
		),
		c.Subscribe(
			platform.All(platform.Group(), platform.Incoming(), platform.Text(), platform.Mentioned()),
			m.handleGroupMention,
		),
		c.Subscribe(
			platform.All(platform.Group(), platform.Outgoing()),
			m.handleGroupOutgoing,
		),
		c.Subscribe(
			platform.All(platform.Private(), platform.Outgoing(), platform.Command("stopall")),
			m.handleStopAll,
		),
	)
}

func (m *AutoReply) Detach(c platform.Client) {
	for _, id := range m.subs {
		c.Unsubscribe(id)
	}
	m.subs = nil
	m.sched.CancelAll()
	m.store.Reset()
}

func (m *AutoReply) handleIncoming(ctx context.Context, c platform.Client, ev platform.Event) {
	chatID, msgID := ev.ChatID, ev.MessageID

	if m.store.ModeActive(chatID) {
		if m.resp.chatter == nil {
			// Backend went away while the mode was on; deactivate.
			slog.Warn("conversation mode active without ai backend", "chat", chatID)
			m.store.ClearMode(chatID)
			send(ctx, c, m.guard, chatID, modeUnavailableNotice)
			return
		}
		slog.Info("conversation mode reply", "chat", chatID, "from", ev.SenderName)
		m.feed.Terminal("assistant replying to " + ev.SenderName)
		m.resp.reply(ctx, c, chatID, ev.Text)
		return
	}

	slog.Info("arming delayed reply", "chat", chatID, "message", msgID, "delay", m.directTimeout)
	m.feed.Terminal("waiting for a manual reply to " + ev.SenderName)

	m.store.SetPending(chatID, msgID)
	m.sched.Schedule(
		schedule.DirectKey(chatID),
		m.directTimeout,
		func() bool { return m.store.PendingMatches(chatID, msgID) },
		func() { m.fireBusyReply(c, chatID) },
	)
}

// fireBusyReply runs on timer expiry: send the busy message, activate
// conversation mode when an assistant is configured, drop the marker.
func (m *AutoReply) fireBusyReply(c platform.Client, chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := send(ctx, c, m.guard, chatID, m.busyMessage); err != nil {
		return
	}
	if m.resp.chatter != nil {
		m.store.SetMode(chatID)
		m.feed.Terminal("auto-replied, conversation mode on")
	} else {
		m.feed.Terminal("auto-replied (assistant disabled)")
	}
	m.store.ClearPending(chatID)
}

func (m *AutoReply) handleOutgoing(ctx context.Context, c platform.Client, ev platform.Event) {
	if m.guard.Active() {
		slog.Debug("programmatic send echo, timers untouched", "chat", ev.ChatID)
		return
	}

	chatID := ev.ChatID
	if m.store.ClearPending(chatID) {
		m.sched.Cancel(schedule.DirectKey(chatID))
		slog.Info("auto-reply cancelled by manual reply", "chat", chatID)
		m.feed.Terminal("auto-reply cancelled (manual reply sent)")
	}
	if m.store.ClearMode(chatID) {
		slog.Info("conversation mode deactivated by manual reply", "chat", chatID)
		m.feed.Terminal("conversation mode off")
	}
}

func (m *AutoReply) handleGroupMention(ctx context.Context, c platform.Client, ev platform.Event) {
	chatID, msgID := ev.ChatID, ev.MessageID

	if !m.store.SetGroupPending(chatID, msgID) {
		return
	}

	slog.Info("arming delayed group reply", "chat", chatID, "message", msgID, "delay", m.groupTimeout)
	m.feed.Terminal("group mention in " + ev.ChatTitle + ", waiting for a manual reply")

	m.sched.Schedule(
		schedule.GroupKey(chatID, msgID),
		m.groupTimeout,
		func() bool { return m.store.GroupPending(chatID, msgID) },
		func() { m.fireGroupBusyReply(c, chatID, msgID) },
	)
}

func (m *AutoReply) fireGroupBusyReply(c platform.Client, chatID, msgID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := send(ctx, c, m.guard, chatID, busyMessageGroup); err == nil {
		m.feed.Terminal("auto-replied in group")
	}
	m.store.ClearGroupPending(chatID, msgID)
}

func (m *AutoReply) handleGroupOutgoing(ctx context.Context, c platform.Client, ev platform.Event) {
	if m.guard.Active() {
		return
	}

	chatID := ev.ChatID
	cleared := m.store.ClearGroupPendingForChat(chatID)
	m.sched.CancelWhere(schedule.GroupChatKeys(chatID))
	if cleared > 0 {
		slog.Info("group auto-replies cancelled", "chat", chatID, "count", cleared)
		m.feed.Terminal("group auto-reply cancelled")
	}
}

func (m *AutoReply) handleStopAll(ctx context.Context, c platform.Client, ev platform.Event) {
	m.store.Reset()
	m.sched.CancelAll()
	slog.Info("all conversation modes stopped")
	m.feed.Terminal("auto-reply stopped everywhere")
	send(ctx, c, m.guard, ev.ChatID, stopAllNotice)
}
