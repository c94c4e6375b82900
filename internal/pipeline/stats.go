package pipeline

import (
	"database/sql"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/procsight/procsight/internal/storage"
)

// StatsResult summarizes a stats run.
type StatsResult struct {
	RunID   string
	Summary storage.SummaryRow
}

// RunStats computes the corpus summary: process and object counts,
// their ratio, and the dominant platform version. It reads only the
// ingested rows, so it can run before or after the details pipeline.
func RunStats(db *sql.DB, log *zap.Logger) (StatsResult, error) {
	if err := storage.ResetStatsTables(db); err != nil {
		return StatsResult{}, err
	}

	reader := storage.NewReader(db)
	writer := storage.NewWriter(db)

	runID, err := writer.BeginRun("stats")
	if err != nil {
		return StatsResult{}, err
	}

	nProc, err := reader.CountByType("P")
	if err != nil {
		return StatsResult{}, err
	}
	nObj, err := reader.CountByType("O")
	if err != nil {
		return StatsResult{}, err
	}
	version, err := reader.CorpusVersion()
	if err != nil {
		return StatsResult{}, err
	}

	ratio := 0.0
	if nObj > 0 {
		ratio = math.Round(float64(nProc)/float64(nObj)*100) / 100
	}

	summary := storage.SummaryRow{
		TotalProcesses: nProc,
		TotalObjects:   nObj,
		Ratio:          ratio,
		BPVersion:      version,
	}
	if err := writer.WriteSummary(summary); err != nil {
		return StatsResult{}, err
	}
	if err := writer.FinishRun(runID, nProc+nObj, 0); err != nil {
		return StatsResult{}, err
	}

	log.Info("stats pipeline complete",
		zap.String("run_id", runID),
		zap.Int("processes", nProc),
		zap.Int("objects", nObj),
		zap.String("version", version))
	return StatsResult{RunID: runID, Summary: summary}, nil
}

// String renders the summary line the CLI prints.
func (r StatsResult) String() string {
	return fmt.Sprintf("%d processes, %d objects (ratio %.2f), platform version %s",
		r.Summary.TotalProcesses, r.Summary.TotalObjects, r.Summary.Ratio, r.Summary.BPVersion)
}
