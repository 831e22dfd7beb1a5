// Package session drives the per-account login handshake and owns the
// registry of running bot sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/config"
	"github.com/tgsitter/tgsitter/internal/convstate"
	"github.com/tgsitter/tgsitter/internal/feature"
	"github.com/tgsitter/tgsitter/internal/guard"
	"github.com/tgsitter/tgsitter/internal/platform"
	"github.com/tgsitter/tgsitter/internal/provider"
	"github.com/tgsitter/tgsitter/internal/schedule"
)

// State is the auth position of a single bot session.
type State int

const (
	StateUnauthenticated State = iota
	StateCodeRequested
	StatePasswordRequired
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateCodeRequested:
		return "code_requested"
	case StatePasswordRequired:
		return "password_required"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// Result statuses reported to the operator console.
const (
	StatusStarted          = "started"
	StatusCodeRequired     = "code_required"
	StatusPasswordRequired = "password_required"
	StatusStopped          = "stopped"
	StatusError            = "error"
)

// Result is the outcome of a start or stop request.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Credentials identify one platform account.
type Credentials struct {
	Phone   string `json:"phone"`
	APIID   string `json:"api_id"`
	APIHash string `json:"api_hash"`
}

// ID is the registry key for these credentials.
func (c Credentials) ID() string {
	return c.Phone + "_" + c.APIID
}

// Bot is one supervised account session: a platform client plus the
// feature modules attached to it while the session is active.
type Bot struct {
	mu        sync.Mutex
	cred      Credentials
	client    platform.Client
	state     State
	challenge string
	profile   platform.Profile
	modules   []feature.Module

	feed *bus.Feed
	log  *slog.Logger
}

// NewBot wires a bot around an existing platform client. Each bot owns
// its own conversation state, scheduler and send guard; sessions never
// share mutable state.
func NewBot(cred Credentials, client platform.Client, chatter provider.Chatter, ai config.AIConfig, reply config.ReplyConfig, feed *bus.Feed) *Bot {
	maxHistory := reply.MaxHistory
	if maxHistory <= 2 {
		if maxHistory > 0 {
			slog.Warn("configured reply history cap cannot hold the instruction pair, using default",
				"configured", maxHistory, "default", convstate.DefaultMaxHistory)
		}
		maxHistory = convstate.DefaultMaxHistory
	}
	deps := feature.Deps{
		Store:   convstate.New(maxHistory, feature.SystemPair),
		Sched:   schedule.New(),
		Guard:   &guard.Counter{},
		Feed:    feed,
		Chatter: chatter,
		AI:      ai,
		Reply:   reply,
	}
	return &Bot{
		cred:    cred,
		client:  client,
		modules: feature.DefaultModules(deps),
		feed:    feed,
		log:     slog.With("component", "session", "session_id", cred.ID()),
	}
}

// Start advances the auth handshake as far as the supplied inputs
// allow. It suspends by returning StatusCodeRequired or
// StatusPasswordRequired; the caller re-invokes it with the missing
// input once the operator supplies it. A panic anywhere in the
// handshake is reported as an error result instead of taking the
// process down.
func (b *Bot) Start(ctx context.Context, code, password string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("session start panicked", "panic", r)
			res = Result{Status: StatusError, Message: fmt.Sprintf("session start failed: %v", r)}
		}
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Already running: re-affirm identity. A failed profile fetch
	// drops through the rest of the machine instead of failing the
	// request outright.
	if b.state == StateActive {
		if p, err := b.client.Profile(ctx); err == nil {
			b.profile = p
			return Result{Status: StatusStarted, Message: fmt.Sprintf("session already running as %s", p.DisplayName())}
		}
		b.log.Warn("active session unreachable, re-authenticating")
		for _, m := range b.modules {
			m.Detach(b.client)
		}
		b.state = StateUnauthenticated
	}

	// Cheap reauthentication first: a persisted credential cache may
	// already authorize the connection without any code exchange.
	if err := b.client.Start(ctx); err == nil {
		return b.activate(ctx)
	} else if !errors.Is(err, platform.ErrNotAuthorized) {
		b.log.Debug("resume attempt failed", "error", err)
	}
	if err := b.client.Connect(ctx); err != nil {
		return Result{Status: StatusError, Message: fmt.Sprintf("connect failed: %v", err)}
	}
	if _, err := b.client.Profile(ctx); err == nil {
		return b.activate(ctx)
	}

	// No challenge outstanding and no code supplied: request one and
	// suspend until the operator relays it.
	if b.challenge == "" && code == "" {
		h, err := b.client.RequestCode(ctx, b.cred.Phone)
		if err != nil {
			return Result{Status: StatusError, Message: fmt.Sprintf("could not request confirmation code: %v", err)}
		}
		b.challenge = h
		b.state = StateCodeRequested
		return Result{Status: StatusCodeRequired, Message: fmt.Sprintf("confirmation code sent to %s", b.cred.Phone)}
	}

	if code != "" && b.challenge != "" {
		err := b.client.VerifyCode(ctx, b.cred.Phone, b.challenge, code)
		switch {
		case err == nil:
			return b.activate(ctx)
		case errors.Is(err, platform.ErrPasswordRequired):
			b.state = StatePasswordRequired
			if password == "" {
				return Result{Status: StatusPasswordRequired, Message: "two-step verification is enabled, password required"}
			}
			// Operator supplied both up front; verify it now.
		case errors.Is(err, platform.ErrCodeInvalid):
			b.challenge = ""
			b.state = StateUnauthenticated
			return Result{Status: StatusError, Message: "confirmation code is invalid"}
		case errors.Is(err, platform.ErrCodeExpired):
			b.challenge = ""
			b.state = StateUnauthenticated
			return Result{Status: StatusError, Message: "confirmation code has expired, request a new one"}
		default:
			return Result{Status: StatusError, Message: fmt.Sprintf("code verification failed: %v", err)}
		}
	}

	if password != "" && b.state == StatePasswordRequired {
		if err := b.client.VerifyPassword(ctx, password); err != nil {
			return Result{Status: StatusError, Message: fmt.Sprintf("password verification failed: %v", err)}
		}
		return b.activate(ctx)
	}

	return Result{Status: StatusError, Message: fmt.Sprintf("unexpected auth state %s", b.state)}
}

// activate fetches the profile, attaches the feature modules and marks
// the session active. Called with b.mu held.
func (b *Bot) activate(ctx context.Context) Result {
	p, err := b.client.Profile(ctx)
	if err != nil {
		return Result{Status: StatusError, Message: fmt.Sprintf("authorized but profile fetch failed: %v", err)}
	}
	b.profile = p
	b.challenge = ""
	b.state = StateActive
	for _, m := range b.modules {
		m.Attach(b.client)
	}
	b.log.Info("session active", "user", p.DisplayName())
	b.feed.Lifecycle("session started", map[string]any{"id": b.cred.ID(), "user": p.DisplayName()})
	return Result{Status: StatusStarted, Message: fmt.Sprintf("session started as %s", p.DisplayName())}
}

// Stop detaches the feature modules and tears down the connection.
func (b *Bot) Stop(ctx context.Context) Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateActive {
		return Result{Status: StatusError, Message: "session is not running"}
	}
	for _, m := range b.modules {
		m.Detach(b.client)
	}
	if err := b.client.Stop(ctx); err != nil {
		b.log.Warn("disconnect failed", "error", err)
	}
	b.state = StateUnauthenticated
	b.challenge = ""
	b.log.Info("session stopped")
	b.feed.Lifecycle("session stopped", map[string]any{"id": b.cred.ID()})
	return Result{Status: StatusStopped, Message: "session stopped"}
}

// Running reports whether the session is active.
func (b *Bot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateActive
}

// State returns the current auth state.
func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Profile returns the last fetched account profile.
func (b *Bot) Profile() platform.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profile
}
