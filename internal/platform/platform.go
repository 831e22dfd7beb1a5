// Package platform defines the messaging platform client consumed by the
// session manager and feature modules. The wire protocol itself is out of
// scope; implementations wrap a real client library.
package platform

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Auth errors surfaced by Client implementations.
var (
	// ErrCodeInvalid means the supplied login code was rejected.
	ErrCodeInvalid = errors.New("login code invalid")
	// ErrCodeExpired means the supplied login code is no longer valid.
	ErrCodeExpired = errors.New("login code expired")
	// ErrPasswordRequired signals that a second-factor password check is
	// needed after code verification. It is a transition, not a failure.
	ErrPasswordRequired = errors.New("second-factor password required")
	// ErrNotAuthorized means the session has no usable authorization.
	ErrNotAuthorized = errors.New("session not authorized")
	// ErrNotConnected means an operation needs a live connection.
	ErrNotConnected = errors.New("client not connected")
)

// Profile describes the authenticated account.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns the best human-readable name for the account.
func (p Profile) DisplayName() string {
	switch {
	case p.Username != "":
		return "@" + p.Username
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	default:
		return "unknown"
	}
}

// Event is one message observed on a session, inbound or outbound.
type Event struct {
	ChatID     int64
	MessageID  int64
	SenderID   int64
	SenderName string
	ChatTitle  string
	Text       string
	Group      bool
	Outgoing   bool
	Mentioned  bool
	Timestamp  time.Time
}

// Handler consumes events that passed a subscription's filter.
type Handler func(ctx context.Context, c Client, ev Event)

// Filter decides whether a subscription sees an event.
type Filter func(Event) bool

// Private matches direct-chat events.
func Private() Filter { return func(ev Event) bool { return !ev.Group } }

// Group matches group-chat events.
func Group() Filter { return func(ev Event) bool { return ev.Group } }

// Incoming matches events sent by the remote party.
func Incoming() Filter { return func(ev Event) bool { return !ev.Outgoing } }

// Outgoing matches events sent from the operator's own account.
func Outgoing() Filter { return func(ev Event) bool { return ev.Outgoing } }

// Text matches events with non-empty text.
func Text() Filter { return func(ev Event) bool { return ev.Text != "" } }

// Mentioned matches group events that mention the account.
func Mentioned() Filter { return func(ev Event) bool { return ev.Mentioned } }

// Command matches "/name" or "/name args".
func Command(name string) Filter {
	prefix := "/" + name
	return func(ev Event) bool {
		return ev.Text == prefix || strings.HasPrefix(ev.Text, prefix+" ")
	}
}

// NotCommand matches text that does not start with the command prefix.
func NotCommand() Filter {
	return func(ev Event) bool { return !strings.HasPrefix(ev.Text, "/") }
}

// All combines filters; every filter must match.
func All(filters ...Filter) Filter {
	return func(ev Event) bool {
		for _, f := range filters {
			if !f(ev) {
				return false
			}
		}
		return true
	}
}

// Client is a single authenticated (or authenticating) platform session.
//
// The auth flow: Start resumes a persisted authorization if one exists.
// Otherwise the caller drives Connect, RequestCode, VerifyCode and, when
// VerifyCode returns ErrPasswordRequired, VerifyPassword.
type Client interface {
	// Connect establishes the transport connection without authorizing.
	// Connecting an already-connected client is a no-op.
	Connect(ctx context.Context) error
	// Start connects and resumes a persisted authorization.
	// Returns ErrNotAuthorized when no usable authorization exists.
	Start(ctx context.Context) error
	// Stop tears down the connection and releases the session handle.
	Stop(ctx context.Context) error
	// Connected reports whether the transport connection is up.
	Connected() bool

	// RequestCode asks the platform to deliver a login code to the
	// account out-of-band and returns an opaque challenge handle.
	RequestCode(ctx context.Context, phone string) (challenge string, err error)
	// VerifyCode checks the code against a previously issued challenge.
	// Returns ErrPasswordRequired, ErrCodeInvalid or ErrCodeExpired.
	VerifyCode(ctx context.Context, phone, challenge, code string) error
	// VerifyPassword checks the second-factor password.
	VerifyPassword(ctx context.Context, password string) error

	// Profile fetches the authenticated account's profile.
	// Fails with ErrNotAuthorized when the session is not authorized.
	Profile(ctx context.Context) (Profile, error)
	// SendMessage sends text to a conversation.
	SendMessage(ctx context.Context, chatID int64, text string) error

	// Subscribe registers a handler for events matching the filter and
	// returns a subscription id usable with Unsubscribe.
	Subscribe(f Filter, h Handler) int
	// Unsubscribe removes a subscription. Unknown ids are ignored.
	Unsubscribe(id int)
}
