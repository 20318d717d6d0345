package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "Inspect stored classification suggestions",
}

var (
	suggestionsStatus string
	suggestionsLimit  int
)

var suggestionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suggestions, optionally filtered by status",
	RunE:  runSuggestionsList,
}

func init() {
	suggestionsListCmd.Flags().StringVar(&suggestionsStatus, "status", "", "filter by status (pending, approved, partial, rejected, auto_approved, expired)")
	suggestionsListCmd.Flags().IntVar(&suggestionsLimit, "limit", 50, "maximum rows to show")
	suggestionsCmd.AddCommand(suggestionsListCmd)
	rootCmd.AddCommand(suggestionsCmd)
}

func runSuggestionsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mgr, err := loadManager(configPath)
	if err != nil {
		return err
	}
	s, err := openStoreOnly(mgr)
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.ListSuggestions(ctx, suggestionsStatus, suggestionsLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		printNoRows("suggestions")
		return nil
	}

	t := newTable([]string{"ID", "EMAIL", "FOLDER", "PRIORITY", "ACTION", "CONF", "STATUS"})
	for _, sg := range rows {
		t.Append([]string{
			fmt.Sprintf("%d", sg.ID),
			truncateForDisplay(sg.EmailID, 16),
			sg.SuggestedFolder,
			sg.SuggestedPriority,
			sg.SuggestedActionType,
			fmt.Sprintf("%.2f", sg.Confidence),
			string(sg.Status),
		})
	}
	return t.Render()
}
