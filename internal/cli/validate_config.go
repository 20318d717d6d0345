package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate the configuration file, exiting 1 on failure",
	RunE:  runValidateConfig,
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config OK (schema_version=%d, database=%s)\n", cfg.SchemaVersion, cfg.Database.Path)
	return nil
}
