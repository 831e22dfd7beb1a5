// Package cli implements the tgsitter command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/tgsitter/tgsitter/internal/cli.version=1.2.3"
	version = "1.4.0"
	logo    = "\n" +
		"  _             _ _   _\n" +
		" | |_ __ _ ___ (_) |_| |_ ___ _ __\n" +
		" | __/ _` / __|| | __| __/ _ \\ '__|\n" +
		" | || (_| \\__ \\| | |_| ||  __/ |\n" +
		"  \\__\\__, |___/|_|\\__|\\__\\___|_|\n" +
		"     |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "tgsitter",
	Short: "tgsitter - chat-bot session supervisor",
	Long:  color.CyanString(logo) + "\nSupervises chat-bot sessions: auth handshakes, auto-replies and an operator console.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
