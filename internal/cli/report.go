package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/procsight/procsight/internal/storage"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the HTML report and JSONL export from the audit database",
	Long: `Report re-renders both artifacts from the current audit database
without re-running the analysis.

Examples:
  # Render with the configured output paths
  procsight report
`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := writeReports(db, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s and %s\n", cfg.Report.HTMLPath, cfg.Report.JSONLPath)
	return nil
}
