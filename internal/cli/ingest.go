package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/procsight/procsight/internal/ingest"
	"github.com/procsight/procsight/internal/storage"
)

var replaceFlag bool

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <export.csv>",
	Short: "Load an automation export dump into the audit database",
	Long: `Ingest reads a headerless CSV export dump (one row per process or
object definition) and loads it into the audit database.

Examples:
  # Load a dump into the configured database
  procsight ingest export.csv

  # Discard previously ingested rows first
  procsight ingest export.csv --replace
`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&replaceFlag, "replace", false, "Drop previously ingested rows before loading")
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	res, err := ingest.File(db, logger, args[0], ingest.Options{Replace: replaceFlag})
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d definitions (%d rows skipped) into %s\n",
		res.Loaded, res.Skipped, cfg.Storage.DBPath)
	return nil
}
