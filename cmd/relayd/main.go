package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftline/relay/cmd/relayd/commands"
	"github.com/driftline/relay/logger"
)

var rootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "relayd - encrypted multi-device sync relay",
	Long: `relayd relays encrypted operation log events between one owner's devices.

It holds a bounded in-memory buffer of events ordered by hybrid logical
clock, deduplicates by operation id, and serves them to devices through a
cursor-based pull protocol plus an optional live WebSocket feed. Payloads
stay encrypted end to end; the relay never holds key material.

Examples:
  relayd serve                     # Start with defaults (port 7411)
  relayd serve --config relay.toml # Start with an explicit config file
  relayd version                   # Show build information`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
