package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/logging"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	configPath string
	verbose    bool
)

// SetVersionInfo sets version information from build flags.
func SetVersionInfo(v, c, b string) {
	version = v
	commit = c
	buildTime = b
}

var rootCmd = &cobra.Command{
	Use:   "triage-agent",
	Short: "An autonomous email triage agent",
	Long: `triage-agent watches a mailbox, classifies new mail with an LLM,
and files suggestions for approval, auto-applying the confident ones
and surfacing a daily digest of what needs attention.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: $ASSISTANT_CONFIG_PATH, else config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the root logger honoring --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return logging.New(level)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("triage-agent %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
	},
}
