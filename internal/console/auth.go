package console

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	authCookie = "tgsitter_admin"
	tokenTTL   = 24 * time.Hour
)

// authenticator issues and checks admin session tokens. Tokens live in
// memory only; a restart logs every operator out.
type authenticator struct {
	mu       sync.Mutex
	password string
	tokens   map[string]time.Time // token -> expiry
}

func newAuthenticator(password string) *authenticator {
	return &authenticator{
		password: password,
		tokens:   make(map[string]time.Time),
	}
}

// login checks the password and mints a token. An empty configured
// password disables admin access entirely.
func (a *authenticator) login(password string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.password == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) != 1 {
		return "", false
	}
	token := uuid.NewString()
	a.tokens[token] = time.Now().Add(tokenTTL)
	return token, true
}

func (a *authenticator) logout(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tokens, token)
}

func (a *authenticator) valid(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(a.tokens, token)
		return false
	}
	return true
}

// require is a middleware rejecting requests without a valid admin
// cookie.
func (a *authenticator) require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(authCookie)
		if err != nil || !a.valid(c.Value) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
