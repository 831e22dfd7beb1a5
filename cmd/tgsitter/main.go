// Package main is the entry point for the tgsitter CLI.
package main

import (
	"os"

	"github.com/tgsitter/tgsitter/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
