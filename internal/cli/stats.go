package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/procsight/procsight/internal/pipeline"
	"github.com/procsight/procsight/internal/storage"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute and print the corpus summary",
	Long: `Stats counts the ingested processes and objects, their ratio, and the
dominant platform version, and stores the summary for the report.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.CreateSchema(db); err != nil {
		return err
	}

	res, err := pipeline.RunStats(db, logger)
	if err != nil {
		return err
	}
	fmt.Println(res.String())
	return nil
}
