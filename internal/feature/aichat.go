package feature

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/config"
	"github.com/tgsitter/tgsitter/internal/convstate"
	"github.com/tgsitter/tgsitter/internal/guard"
	"github.com/tgsitter/tgsitter/internal/platform"
	"github.com/tgsitter/tgsitter/internal/provider"
)

// SystemPair is the fixed instruction pair seeded as the first two history
// entries of every conversation.
var SystemPair = [2]convstate.Turn{
	{
		Role: convstate.RoleUser,
		Content: "You are a helpful assistant replying on behalf of the account " +
			"owner while they are away. Match the language the user writes in. " +
			"Be natural, friendly and concise.",
	},
	{
		Role:    convstate.RoleModel,
		Content: "Understood. I'll answer on the owner's behalf until they are back.",
	},
}

// Fixed user-facing notices, one per failure kind.
const (
	aiDisabledNotice = "AI features are currently disabled: no API key is configured.\n\n" +
		"Set one and restart the bot to enable assistant replies."
	aiTimeoutNotice   = "The assistant took too long to answer. Please try again."
	aiTransportNotice = "Could not reach the assistant. Please check the connection and try again."
	aiMalformedNotice = "The assistant returned an unreadable answer. Please try again."
	aiUsageNotice     = "Usage: /ai <your question>\n\nExample: /ai what is a goroutine?"
	historyCleared    = "Conversation history cleared. We start fresh from here."
	historyEmpty      = "There is no conversation history for this chat."
)

// responder runs one AI-backed reply: append the user turn, call the
// backend with the bounded history, append and send the answer. Failures
// become distinct fixed notices; history is left intact so the user may
// retry.
type responder struct {
	chatter provider.Chatter
	store   *convstate.Store
	guard   *guard.Counter
	ai      config.AIConfig
}

func (r *responder) reply(ctx context.Context, c platform.Client, chatID int64, query string) {
	r.store.AppendTurn(chatID, convstate.RoleUser, query)

	msgs := historyMessages(r.store.History(chatID))
	resp, err := r.chatter.Chat(ctx, &provider.ChatRequest{
		Messages:    msgs,
		Model:       r.ai.Model,
		MaxTokens:   r.ai.MaxTokens,
		Temperature: r.ai.Temperature,
		TopK:        r.ai.TopK,
		TopP:        r.ai.TopP,
	})
	if err != nil {
		slog.Error("ai request failed", "chat", chatID, "error", err)
		send(ctx, c, r.guard, chatID, noticeFor(err))
		return
	}

	r.store.AppendTurn(chatID, convstate.RoleModel, resp.Content)
	send(ctx, c, r.guard, chatID, resp.Content)
}

func historyMessages(turns []convstate.Turn) []provider.Message {
	msgs := make([]provider.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, provider.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

func noticeFor(err error) string {
	switch {
	case errors.Is(err, provider.ErrTimeout):
		return aiTimeoutNotice
	case errors.Is(err, provider.ErrMalformed):
		return aiMalformedNotice
	default:
		return aiTransportNotice
	}
}

// AIChat answers explicit /ai queries and handles /clear.
type AIChat struct {
	resp  responder
	feed  *bus.Feed
	guard *guard.Counter
	subs  []int
}

// NewAIChat creates the AI command module.
func NewAIChat(d Deps) *AIChat {
	return &AIChat{
		resp:  responder{chatter: d.Chatter, store: d.Store, guard: d.Guard, ai: d.AI},
		feed:  d.Feed,
		guard: d.Guard,
	}
}

func (m *AIChat) Name() string { return "aichat" }

func (m *AIChat) Attach(c platform.Client) {
	m.subs = append(m.subs,
		c.Subscribe(
			platform.All(platform.Private(), platform.Incoming(), platform.Command("ai")),
			m.handleQuery,
		),
		c.Subscribe(
			platform.All(platform.Private(), platform.Incoming(), platform.Command("clear")),
			m.handleClear,
		),
	)
}

func (m *AIChat) Detach(c platform.Client) {
	for _, id := range m.subs {
		c.Unsubscribe(id)
	}
	m.subs = nil
}

func (m *AIChat) handleQuery(ctx context.Context, c platform.Client, ev platform.Event) {
	if m.resp.chatter == nil {
		slog.Warn("ai command while backend disabled", "chat", ev.ChatID)
		send(ctx, c, m.guard, ev.ChatID, aiDisabledNotice)
		return
	}

	query := strings.TrimSpace(strings.TrimPrefix(ev.Text, "/ai"))
	if query == "" {
		send(ctx, c, m.guard, ev.ChatID, aiUsageNotice)
		return
	}

	slog.Info("ai query", "chat", ev.ChatID, "from", ev.SenderName)
	m.feed.Terminal("ai query from " + ev.SenderName)
	m.resp.reply(ctx, c, ev.ChatID, query)
}

func (m *AIChat) handleClear(ctx context.Context, c platform.Client, ev platform.Event) {
	if m.resp.store.ClearHistory(ev.ChatID) {
		send(ctx, c, m.guard, ev.ChatID, historyCleared)
		m.feed.Terminal("history cleared for " + ev.SenderName)
		return
	}
	send(ctx, c, m.guard, ev.ChatID, historyEmpty)
}
