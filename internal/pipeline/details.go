// Package pipeline derives the audit tables from ingested exports. The
// details pipeline recovers and audits embedded code per definition;
// the stats pipeline aggregates corpus-level numbers; the call graph
// analyzes the subprocess structure.
package pipeline

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/maypok86/otter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/procsight/procsight/internal/bpxml"
	"github.com/procsight/procsight/internal/codetext"
	"github.com/procsight/procsight/internal/storage"
)

// previewRunes is how much recovered code the report tables carry inline.
const previewRunes = 300

// analysisCacheSize bounds the digest-keyed analysis dedup cache.
// Exports duplicate code heavily (copied utility objects), so repeated
// identical fragments are analyzed once.
const analysisCacheSize = 16_384

// DetailsOptions filters and tunes a details run.
type DetailsOptions struct {
	OnlyType       string // "P" or "O"; empty audits both
	NameLike       string // glob over definition names, case-insensitive
	Workers        int    // analysis workers; 0 uses NumCPU
	MaxFormatBytes int    // forwarded to the code analyzer
}

// DetailsResult summarizes a details run.
type DetailsResult struct {
	RunID     string
	Processed int // definitions analyzed
	Skipped   int // definitions filtered out or unparseable
}

// Details is the per-definition audit pipeline.
type Details struct {
	db       *sql.DB
	log      *zap.Logger
	progress ProgressReporter
	cache    otter.Cache[string, codetext.Result]
}

// NewDetails builds a details pipeline over an open audit database.
func NewDetails(db *sql.DB, log *zap.Logger, progress ProgressReporter) (*Details, error) {
	if progress == nil {
		progress = &NoOpProgressReporter{}
	}
	cache, err := otter.MustBuilder[string, codetext.Result](analysisCacheSize).Build()
	if err != nil {
		return nil, fmt.Errorf("build analysis cache: %w", err)
	}
	return &Details{db: db, log: log, progress: progress, cache: cache}, nil
}

// analysisJob is one code fragment scheduled for analysis.
type analysisJob struct {
	raw  string
	hint string
	slot *codetext.Result
}

// Run executes the details pipeline: fetch, filter, parse, analyze,
// and write every detail table. Derived tables are reset first, so a
// run always reflects exactly one pass over the corpus.
func (d *Details) Run(ctx context.Context, opts DetailsOptions) (DetailsResult, error) {
	var nameGlob glob.Glob
	if opts.NameLike != "" {
		g, err := glob.Compile(strings.ToLower(opts.NameLike))
		if err != nil {
			return DetailsResult{}, fmt.Errorf("compile name filter %q: %w", opts.NameLike, err)
		}
		nameGlob = g
	}

	if err := storage.ResetDetailTables(d.db); err != nil {
		return DetailsResult{}, err
	}

	reader := storage.NewReader(d.db)
	writer := storage.NewWriter(d.db)

	records, err := reader.FetchProcesses()
	if err != nil {
		return DetailsResult{}, err
	}
	nameIndex, err := reader.ProcessNameIndex()
	if err != nil {
		return DetailsResult{}, err
	}

	var nProc, nObj int
	for _, r := range records {
		if r.Type == "P" {
			nProc++
		} else {
			nObj++
		}
	}
	d.progress.OnFetchComplete(nProc, nObj)

	runID, err := writer.BeginRun("details")
	if err != nil {
		return DetailsResult{}, err
	}
	res := DetailsResult{RunID: runID}

	// Filter, then parse serially. Parsing is cheap next to the code
	// analysis, and serial parsing keeps skip accounting simple.
	type parsed struct {
		rec storage.ProcessRecord
		def *bpxml.Definition
	}
	var defs []parsed
	for _, rec := range records {
		if opts.OnlyType != "" && rec.Type != opts.OnlyType {
			res.Skipped++
			continue
		}
		if nameGlob != nil && !nameGlob.Match(strings.ToLower(rec.Name)) {
			res.Skipped++
			continue
		}
		def, err := bpxml.Parse(rec.XML)
		if err != nil {
			res.Skipped++
			d.log.Warn("skipping unparseable definition",
				zap.String("id", rec.ID),
				zap.String("name", rec.Name),
				zap.Error(err))
			continue
		}
		defs = append(defs, parsed{rec: rec, def: def})
	}
	d.progress.OnAnalysisStart(len(defs))

	// Schedule one analysis per code stage and per global code block.
	// Results land in pre-assigned slots, so workers never share state.
	codeResults := make([][]codetext.Result, len(defs))
	globalResults := make([]codetext.Result, len(defs))
	var jobs []analysisJob
	for i, p := range defs {
		var stageSlots []int
		for j, st := range p.def.Stages {
			if st.Type == bpxml.StageTypeCode {
				stageSlots = append(stageSlots, j)
			}
		}
		codeResults[i] = make([]codetext.Result, len(p.def.Stages))
		for _, j := range stageSlots {
			jobs = append(jobs, analysisJob{
				raw:  p.def.Stages[j].CodeText,
				hint: p.def.Stages[j].LanguageHint,
				slot: &codeResults[i][j],
			})
		}
		if p.def.GlobalCode != "" {
			jobs = append(jobs, analysisJob{
				raw:  p.def.GlobalCode,
				hint: p.def.LanguageHint,
				slot: &globalResults[i],
			})
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			*job.slot = d.analyze(job.raw, job.hint, opts.MaxFormatBytes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DetailsResult{}, err
	}

	// Assemble rows per definition and batch-write per table.
	var (
		codeRows    []storage.CodeStageRow
		globalRows  []storage.GlobalCodeRow
		credRows    []storage.CredentialUsageRow
		subRows     []storage.SubprocessMappingRow
		resRows     []storage.ResourceUsageRow
		logRows     []storage.LoggingReportRow
		logSums     []storage.LoggingSummaryRow
		detailRows  []storage.ProcessDetailsRow
		assembleErr error
	)
	for i, p := range defs {
		rec, def := p.rec, p.def

		for j, st := range def.Stages {
			switch st.Type {
			case bpxml.StageTypeCode:
				r := codeResults[i][j]
				findingsJSON, err := json.Marshal(r.Findings)
				if err != nil {
					assembleErr = fmt.Errorf("encode findings for %s: %w", rec.Name, err)
					break
				}
				codeRows = append(codeRows, storage.CodeStageRow{
					ObjectID:     rec.ID,
					ObjectName:   rec.Name,
					PageName:     def.PageName(st),
					StageID:      st.ID,
					StageName:    st.Name,
					Language:     r.Language.String(),
					SourceKind:   r.SourceKind.String(),
					CodeText:     r.PrettyCode,
					CodePreview:  preview(r.PrettyCode),
					LineCount:    r.DisplayLineCount,
					SHA256:       r.Digest,
					FindingsJSON: string(findingsJSON),
					Truncated:    r.Truncated,
				})
			case bpxml.StageTypeProcess:
				if st.CalledID == "" {
					continue
				}
				calledName, ok := nameIndex[st.CalledID]
				if !ok {
					calledName = "Unknown"
				}
				subRows = append(subRows, storage.SubprocessMappingRow{
					ParentID:          rec.ID,
					ParentName:        rec.Name,
					ParentDescription: rec.Description,
					CalledID:          st.CalledID,
					CalledName:        calledName,
				})
			}
			if st.Resource == bpxml.CredentialsResourceObject {
				credRows = append(credRows, storage.CredentialUsageRow{
					ProcessName: rec.Name,
					PageName:    def.PageName(st),
					StageName:   st.Name,
				})
			}
		}
		if assembleErr != nil {
			return DetailsResult{}, assembleErr
		}

		if def.GlobalCode != "" {
			r := globalResults[i]
			globalRows = append(globalRows, storage.GlobalCodeRow{
				ObjectID:   rec.ID,
				ObjectName: rec.Name,
				Language:   r.Language.String(),
				CodeText:   r.PrettyCode,
				LineCount:  r.DisplayLineCount,
				SHA256:     r.Digest,
			})
		}

		for _, obj := range def.Resources {
			resRows = append(resRows, storage.ResourceUsageRow{
				ProcessID:      rec.ID,
				ProcessName:    rec.Name,
				Description:    rec.Description,
				ResourceObject: obj,
			})
		}

		logRow, logSum, err := loggingRows(rec, def)
		if err != nil {
			return DetailsResult{}, err
		}
		logRows = append(logRows, logRow)
		logSums = append(logSums, logSum)

		detailRow, err := censusRow(rec, def)
		if err != nil {
			return DetailsResult{}, err
		}
		detailRows = append(detailRows, detailRow)

		res.Processed++
		d.progress.OnDefinitionProcessed(rec.Name)
	}

	if err := writer.WriteCodeStages(codeRows); err != nil {
		return DetailsResult{}, err
	}
	if err := writer.WriteGlobalCode(globalRows); err != nil {
		return DetailsResult{}, err
	}
	if err := writer.WriteCredentialUsages(credRows); err != nil {
		return DetailsResult{}, err
	}
	if err := writer.WriteSubprocessMappings(subRows); err != nil {
		return DetailsResult{}, err
	}
	if err := writer.WriteResourceUsages(resRows); err != nil {
		return DetailsResult{}, err
	}
	if err := writer.WriteLoggingReports(logRows, logSums); err != nil {
		return DetailsResult{}, err
	}
	if err := writer.WriteProcessDetails(detailRows); err != nil {
		return DetailsResult{}, err
	}

	if err := writer.FinishRun(runID, res.Processed, res.Skipped); err != nil {
		return DetailsResult{}, err
	}
	d.progress.OnComplete(res.Processed, res.Skipped)
	d.log.Info("details pipeline complete",
		zap.String("run_id", runID),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("code_stages", len(codeRows)))
	return res, nil
}

// analyze runs the code analyzer with a dedup cache in front. The key
// covers the raw fragment and the hint: the same bytes under different
// hints can resolve to different languages.
func (d *Details) analyze(raw, hint string, maxFormatBytes int) codetext.Result {
	sum := sha256.New()
	sum.Write([]byte(hint))
	sum.Write([]byte{0})
	sum.Write([]byte(raw))
	key := hex.EncodeToString(sum.Sum(nil))

	if r, ok := d.cache.Get(key); ok {
		return r
	}
	r := codetext.Analyze(raw, hint, codetext.Options{MaxFormatBytes: maxFormatBytes})
	d.cache.Set(key, r)
	return r
}

// preview flattens code to a single line capped at previewRunes.
func preview(code string) string {
	flat := strings.Join(strings.Fields(code), " ")
	runes := []rune(flat)
	if len(runes) <= previewRunes {
		return flat
	}
	return string(runes[:previewRunes]) + "..."
}

// safePct is a percentage rounded to two decimals, 0 for an empty total.
func safePct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}

func loggingRows(rec storage.ProcessRecord, def *bpxml.Definition) (storage.LoggingReportRow, storage.LoggingSummaryRow, error) {
	enabled := []string{}
	inhibited := []string{}
	var errorOnly, none int
	for _, st := range def.Stages {
		switch st.LogMode {
		case bpxml.LogFull:
			enabled = append(enabled, st.Name)
		case bpxml.LogErrorOnly:
			errorOnly++
			inhibited = append(inhibited, st.Name)
		case bpxml.LogNone:
			none++
			inhibited = append(inhibited, st.Name)
		}
	}

	enabledJSON, err := json.Marshal(enabled)
	if err != nil {
		return storage.LoggingReportRow{}, storage.LoggingSummaryRow{}, fmt.Errorf("encode logging names: %w", err)
	}
	inhibitedJSON, err := json.Marshal(inhibited)
	if err != nil {
		return storage.LoggingReportRow{}, storage.LoggingSummaryRow{}, fmt.Errorf("encode logging names: %w", err)
	}

	total := len(def.Stages)
	report := storage.LoggingReportRow{
		ProcessID:      rec.ID,
		EnabledCount:   len(enabled),
		InhibitedCount: len(inhibited),
		EnabledNames:   string(enabledJSON),
		InhibitedNames: string(inhibitedJSON),
	}
	summary := storage.LoggingSummaryRow{
		ProcessID:        rec.ID,
		ProcessName:      rec.Name,
		TotalStages:      total,
		NoLoggingCount:   none,
		FullLoggingCount: len(enabled),
		ErrorOnlyCount:   errorOnly,
		NoLoggingPct:     safePct(none, total),
		FullLoggingPct:   safePct(len(enabled), total),
		ErrorOnlyPct:     safePct(errorOnly, total),
	}
	return report, summary, nil
}

// censusRow counts stages by type for one definition, as both JSON and
// a short human-readable line.
func censusRow(rec storage.ProcessRecord, def *bpxml.Definition) (storage.ProcessDetailsRow, error) {
	type typeCensus struct {
		Count int      `json:"count"`
		Names []string `json:"names"`
	}
	census := make(map[string]*typeCensus)
	for _, st := range def.Stages {
		typ := st.Type
		if typ == "" {
			typ = "Unknown"
		}
		c, ok := census[typ]
		if !ok {
			c = &typeCensus{}
			census[typ] = c
		}
		c.Count++
		c.Names = append(c.Names, st.Name)
	}

	blob, err := json.Marshal(census)
	if err != nil {
		return storage.ProcessDetailsRow{}, fmt.Errorf("encode stage census for %s: %w", rec.Name, err)
	}

	types := make([]string, 0, len(census))
	for typ := range census {
		types = append(types, typ)
	}
	sort.Strings(types)
	parts := make([]string, 0, len(types))
	for _, typ := range types {
		parts = append(parts, fmt.Sprintf("%s: %d", typ, census[typ].Count))
	}

	return storage.ProcessDetailsRow{
		ProcessID:     rec.ID,
		StageTypeJSON: string(blob),
		StageTypeText: strings.Join(parts, ", "),
	}, nil
}
