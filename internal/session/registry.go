package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/config"
	"github.com/tgsitter/tgsitter/internal/platform"
	"github.com/tgsitter/tgsitter/internal/provider"
)

// ClientFactory builds a platform client for one account. The returned
// client is owned by the bot for its whole lifetime.
type ClientFactory func(cred Credentials) (platform.Client, error)

// Recorder persists the last known auth state of an account so status
// queries and restarts can report sessions without touching the
// platform. Implemented by the sqlite store.
type Recorder interface {
	SaveProfile(ctx context.Context, id, phone string, p platform.Profile, authorized bool) error
}

// Options configure a registry and everything it shares across bots.
type Options struct {
	NewClient ClientFactory
	Chatter   provider.Chatter
	AI        config.AIConfig
	Reply     config.ReplyConfig
	Feed      *bus.Feed
	Records   Recorder
}

// Info is one row of the session listing.
type Info struct {
	ID          string `json:"id"`
	Running     bool   `json:"running"`
	DisplayName string `json:"display_name"`
}

// Registry owns the map of bot sessions. Start and stop requests run on
// background goroutines; their eventual results are pushed onto the
// console feed, and callers get an immediate acknowledgment.
type Registry struct {
	mu   sync.Mutex
	bots map[string]*Bot
	opts Options
	log  *slog.Logger
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		bots: make(map[string]*Bot),
		opts: opts,
		log:  slog.With("component", "registry"),
	}
}

// bot returns the session for cred, creating it on first use.
func (r *Registry) bot(cred Credentials) (*Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bots[cred.ID()]; ok {
		return b, nil
	}
	client, err := r.opts.NewClient(cred)
	if err != nil {
		return nil, fmt.Errorf("create platform client: %w", err)
	}
	b := NewBot(cred, client, r.opts.Chatter, r.opts.AI, r.opts.Reply, r.opts.Feed)
	r.bots[cred.ID()] = b
	return b, nil
}

// StartSession dispatches a start request and returns immediately. The
// handshake result arrives on the feed as a lifecycle event; auth waits
// for operator-supplied codes are unbounded, so no context deadline is
// imposed.
func (r *Registry) StartSession(cred Credentials, code, password string) error {
	b, err := r.bot(cred)
	if err != nil {
		return err
	}
	go func() {
		res := b.Start(context.Background(), code, password)
		r.publish(cred.ID(), "start", res)
		if res.Status == StatusStarted && r.opts.Records != nil {
			if err := r.opts.Records.SaveProfile(context.Background(), cred.ID(), cred.Phone, b.Profile(), true); err != nil {
				r.log.Warn("session record save failed", "session_id", cred.ID(), "error", err)
			}
		}
	}()
	return nil
}

// StopSession dispatches a stop request for a known session.
func (r *Registry) StopSession(id string) error {
	r.mu.Lock()
	b, ok := r.bots[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %q", id)
	}
	go func() {
		res := b.Stop(context.Background())
		r.publish(id, "stop", res)
		if res.Status == StatusStopped && r.opts.Records != nil {
			if err := r.opts.Records.SaveProfile(context.Background(), id, b.cred.Phone, b.Profile(), false); err != nil {
				r.log.Warn("session record save failed", "session_id", id, "error", err)
			}
		}
	}()
	return nil
}

// List reports all known sessions, sorted by id for stable output.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.bots))
	for id, b := range r.bots {
		out = append(out, Info{
			ID:          id,
			Running:     b.Running(),
			DisplayName: b.Profile().DisplayName(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the bot for id, if any.
func (r *Registry) Get(id string) (*Bot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bots[id]
	return b, ok
}

// StopAll synchronously stops every running session. Used on shutdown.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	bots := make([]*Bot, 0, len(r.bots))
	for _, b := range r.bots {
		bots = append(bots, b)
	}
	r.mu.Unlock()

	for _, b := range bots {
		if b.Running() {
			b.Stop(ctx)
		}
	}
}

func (r *Registry) publish(id, op string, res Result) {
	r.log.Info("session "+op+" finished", "session_id", id, "status", res.Status, "message", res.Message)
	r.opts.Feed.Lifecycle("session "+op+" result", map[string]any{
		"id":      id,
		"status":  res.Status,
		"message": res.Message,
	})
}
