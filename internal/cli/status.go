package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgsitter/tgsitter/internal/config"
	"github.com/tgsitter/tgsitter/internal/platform"
	"github.com/tgsitter/tgsitter/internal/store"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("tgsitter version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and known sessions",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("tgsitter status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			fmt.Println("Config:  " + path)
		}
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  load failed: %v\n", err)
			return
		}

		if cfg.AI.Configured() {
			fmt.Printf("AI:      %s backend configured\n", cfg.AI.Backend)
		} else {
			fmt.Println("AI:      not configured (assistant replies disabled)")
		}
		fmt.Printf("Driver:  %s (available: %v)\n", cfg.Platform.Driver, platform.Drivers())
		fmt.Printf("Console: http://%s:%d\n", cfg.Console.Host, cfg.Console.Port)

		printStoredSessions(cfg.Paths.DBPath)
	},
}

func printStoredSessions(dbPath string) {
	if dbPath == "" {
		return
	}
	s, err := store.Open(dbPath)
	if err != nil {
		fmt.Printf("Sessions: store unavailable: %v\n", err)
		return
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	records, err := s.All(ctx)
	if err != nil {
		fmt.Printf("Sessions: query failed: %v\n", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("Sessions: none recorded")
		return
	}
	fmt.Println("Sessions:")
	for _, rec := range records {
		state := "signed out"
		if rec.Authorized {
			state = "authorized"
		}
		fmt.Printf("  %-24s %-10s %s\n", rec.ID, state, rec.DisplayName())
	}
}
