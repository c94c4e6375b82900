package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/procsight/procsight/internal/config"
	"github.com/procsight/procsight/internal/ingest"
	"github.com/procsight/procsight/internal/pipeline"
	"github.com/procsight/procsight/internal/report"
	"github.com/procsight/procsight/internal/storage"
)

var (
	quietFlag    bool
	watchFlag    bool
	onlyTypeFlag string
	nameLikeFlag string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [export.csv]",
	Short: "Audit the ingested definitions and write the reports",
	Long: `Analyze runs the full audit over the ingested export: it recovers the
code embedded in every definition, classifies and pretty-prints it,
scans it for risk findings, derives the logging and call-structure
tables, and writes the HTML report and JSONL export.

When an export file is given it is (re-)ingested first.

Examples:
  # Audit what is already in the database
  procsight analyze

  # Ingest a dump, then audit it
  procsight analyze export.csv

  # Audit objects only, without progress bars
  procsight analyze --only-type O --quiet

  # Re-ingest and re-audit whenever the dump changes
  procsight analyze export.csv --watch
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	analyzeCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the export file and re-run on changes")
	analyzeCmd.Flags().StringVar(&onlyTypeFlag, "only-type", "", "Restrict the audit to one definition kind: P or O")
	analyzeCmd.Flags().StringVar(&nameLikeFlag, "name-like", "", "Only audit definitions whose name matches this glob")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	// Set up context with cancellation for Ctrl+C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted! Cancelling audit...")
		cancel()
	}()

	if onlyTypeFlag != "" && onlyTypeFlag != "P" && onlyTypeFlag != "O" {
		return fmt.Errorf("--only-type must be P or O, got %q", onlyTypeFlag)
	}
	if watchFlag && len(args) == 0 {
		return fmt.Errorf("--watch requires an export file argument")
	}

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

	var exportPath string
	if len(args) == 1 {
		exportPath = args[0]
	}

	if err := analyzeOnce(ctx, db, logger, cfg, exportPath); err != nil {
		return err
	}
	if !watchFlag {
		return nil
	}
	return watchExport(ctx, db, logger, cfg, exportPath)
}

// analyzeOnce runs one complete audit pass: optional ingest, the
// details and stats pipelines, and both report artifacts.
func analyzeOnce(ctx context.Context, db *sql.DB, logger *zap.Logger, cfg *config.Config, exportPath string) error {
	if exportPath != "" {
		res, err := ingest.File(db, logger, exportPath, ingest.Options{Replace: true})
		if err != nil {
			return err
		}
		if !quietFlag {
			log.Printf("Ingested %d definitions (%d rows skipped)\n", res.Loaded, res.Skipped)
		}
	}

	details, err := pipeline.NewDetails(db, logger, NewCLIProgressReporter(quietFlag))
	if err != nil {
		return err
	}
	if _, err := details.Run(ctx, pipeline.DetailsOptions{
		OnlyType:       onlyTypeFlag,
		NameLike:       nameLikeFlag,
		Workers:        cfg.Analyzer.Workers,
		MaxFormatBytes: cfg.Analyzer.MaxFormatBytes,
	}); err != nil {
		return err
	}
	if _, err := pipeline.RunStats(db, logger); err != nil {
		return err
	}

	if err := writeReports(db, cfg); err != nil {
		return err
	}
	if !quietFlag {
		log.Printf("Wrote %s and %s\n", cfg.Report.HTMLPath, cfg.Report.JSONLPath)
	}
	return nil
}

func writeReports(db *sql.DB, cfg *config.Config) error {
	data, err := report.Collect(db, cfg.Report.Customer)
	if err != nil {
		return err
	}

	htmlFile, err := os.Create(cfg.Report.HTMLPath)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer htmlFile.Close()
	if err := report.WriteHTML(htmlFile, data); err != nil {
		return err
	}

	jsonlFile, err := os.Create(cfg.Report.JSONLPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer jsonlFile.Close()
	if _, err := report.WriteJSONL(jsonlFile, db); err != nil {
		return err
	}
	return nil
}

// watchExport re-runs the audit whenever the export file changes.
// Events are debounced: dump regeneration writes in bursts.
func watchExport(ctx context.Context, db *sql.DB, logger *zap.Logger, cfg *config.Config, exportPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and exporters often
	// replace the file, which drops a direct watch.
	if err := watcher.Add(filepath.Dir(exportPath)); err != nil {
		return fmt.Errorf("watch %s: %w", exportPath, err)
	}

	if !quietFlag {
		log.Printf("Watching %s for changes (Ctrl+C to stop)\n", exportPath)
	}

	const debounce = 500 * time.Millisecond
	var debounceTimer *time.Timer
	rerunCh := make(chan struct{}, 1)

	target := filepath.Clean(exportPath)
	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			// Reset debounce timer - properly stop and drain
			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case rerunCh <- struct{}{}:
				default:
				}
			})

		case <-rerunCh:
			if !quietFlag {
				log.Println("Export changed, re-running audit...")
			}
			if err := analyzeOnce(ctx, db, logger, cfg, exportPath); err != nil {
				log.Printf("Audit failed: %v", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}
