package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/config"
	"github.com/tgsitter/tgsitter/internal/console"
	"github.com/tgsitter/tgsitter/internal/platform"
	"github.com/tgsitter/tgsitter/internal/provider"
	"github.com/tgsitter/tgsitter/internal/session"
	"github.com/tgsitter/tgsitter/internal/store"
)

var serveJSONLogs bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session supervisor and operator console",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveJSONLogs, "json-logs", false, "emit logs as JSON")
}

func runServe() error {
	_ = godotenv.Load()
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var records *store.Store
	if cfg.Paths.DBPath != "" {
		records, err = store.Open(cfg.Paths.DBPath)
		if err != nil {
			slog.Warn("session record store unavailable", "path", cfg.Paths.DBPath, "error", err)
			records = nil
		} else {
			defer records.Close()
		}
	}

	chatter, err := provider.Resolve(cfg.AI)
	if err != nil {
		return fmt.Errorf("resolve AI backend: %w", err)
	}
	if chatter == nil {
		slog.Info("no AI backend configured, assistant replies disabled")
	} else {
		slog.Info("AI backend ready", "backend", cfg.AI.Backend, "model", chatter.DefaultModel())
	}

	feed := bus.NewFeed()
	opts := session.Options{
		NewClient: func(cred session.Credentials) (platform.Client, error) {
			return platform.NewClient(cfg.Platform.Driver, platform.Options{
				Phone:      cred.Phone,
				APIID:      cred.APIID,
				APIHash:    cred.APIHash,
				SessionDir: cfg.Paths.SessionDir,
			})
		},
		Chatter: chatter,
		AI:      cfg.AI,
		Reply:   cfg.Reply,
		Feed:    feed,
	}
	if records != nil {
		opts.Records = records
	}
	registry := session.NewRegistry(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := console.New(cfg.Console, cfg.Paths.SessionDir, registry, feed, records)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("console server: %w", err)
	}

	slog.Info("shutting down, stopping sessions")
	registry.StopAll(context.Background())
	return nil
}

func setupLogging() {
	level := slog.LevelInfo
	if os.Getenv("TGSITTER_DEBUG") != "" {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if serveJSONLogs {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
