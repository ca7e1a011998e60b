package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬ ┬┬  ┌─┐┌─┐
  ├─┘│ ││  └─┐├┤
  ┴  └─┘┴─┘└─┘└─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulse",
		Short: "Reactive dependency tracking for Go services",
		Long: `Pulse is a fine-grained reactive engine for Go.

Declare sources for the values your service depends on and guards
for the conditions derived from them; dependency edges are collected
automatically and re-evaluation happens only where a change actually
flows. Features include:

  • Automatic dependency tracking, re-collected on every run
  • Sync and async guards with run supersession
  • Structured failure reasons and dependency explanations
  • Snapshot serialization and zero-evaluation hydration
  • Live graph inspection over HTTP and WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		inspectCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Pulse ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
