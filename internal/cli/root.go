package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitSuccess        = 0
	ExitGenericError   = 1
	ExitConfigInvalid  = 2
	ExitConnectFailure = 3
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	Dir            string
	ConfigPath     string
	StateDir       string
	JSON           bool
	NonInteractive bool
	Quiet          bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "nostrmcp",
	Short: "MCP over a Nostr event network, with per-call payment gating",
	Long:  "nostrmcp carries the Model Context Protocol over signed, optionally gift-wrapped Nostr events, with an optional payment handshake gating priced capabilities.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Dir, "dir", ".", "working directory for relative config/state paths")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&globalFlags.StateDir, "state-dir", "", "state directory (default: <dir>/.nostrmcp)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "emit NDJSON events for automation/logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.NonInteractive, "non-interactive", false, "disable prompts; fail fast with actionable instructions when config is missing")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Quiet, "quiet", false, "reduce output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and returns an error; exit code is set by RunE.
func Execute() error {
	return rootCmd.Execute()
}

// exitWith prints message to stderr and exits with code.
func exitWith(code int, msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}
