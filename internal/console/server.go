// Package console exposes the operator HTTP API: session lifecycle
// endpoints, admin-protected session file backups and a websocket
// terminal streaming the live event feed.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/config"
	"github.com/tgsitter/tgsitter/internal/session"
	"github.com/tgsitter/tgsitter/internal/store"
)

// Server is the operator console.
type Server struct {
	cfg        config.ConsoleConfig
	sessionDir string
	reg        *session.Registry
	feed       *bus.Feed
	records    *store.Store
	auth       *authenticator
	router     chi.Router
	log        *slog.Logger
}

// New builds the console router. records may be nil when no database is
// configured.
func New(cfg config.ConsoleConfig, sessionDir string, reg *session.Registry, feed *bus.Feed, records *store.Store) *Server {
	s := &Server{
		cfg:        cfg,
		sessionDir: sessionDir,
		reg:        reg,
		feed:       feed,
		records:    records,
		auth:       newAuthenticator(cfg.AdminPassword),
		log:        slog.With("component", "console"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/bot/start", s.handleBotStart)
		r.Post("/bot/stop", s.handleBotStop)
		r.Get("/bot/status", s.handleBotStatus)

		r.Post("/admin/login", s.handleLogin)
		r.Post("/admin/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.require)
			r.Get("/admin/sessions/list", s.handleSessionList)
			r.Get("/admin/sessions/download", s.handleSessionDownload)
			r.Post("/admin/sessions/upload", s.handleSessionUpload)
			r.Get("/ws", s.handleWebsocket)
		})
	})
	r.Get("/", s.handleIndex)

	s.router = r
	return s
}

func (s *Server) corsOrigins() []string {
	if s.cfg.AllowedOrigin == "" {
		return []string{"*"}
	}
	return []string{s.cfg.AllowedOrigin}
}

// Handler returns the root http handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("console listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}
