package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Writer persists derived audit rows. All batch methods run in a single
// transaction; sqlite is the only writer-side shared resource, so the
// pipelines collect results concurrently and hand them here serially.
type Writer struct {
	db *sql.DB
}

// NewWriter creates a Writer. The schema must already exist.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

func (w *Writer) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // safe to call after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WriteCodeStages writes one batch of per-stage audit records.
func (w *Writer) WriteCodeStages(rows []CodeStageRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.inTx(func(tx *sql.Tx) error {
		for _, r := range rows {
			_, err := sq.Insert("object_code_stage_report").
				Columns("object_id", "object_name", "page_name",
					"stage_id", "stage_name", "language", "source_kind",
					"code_text", "code_preview", "line_count", "sha256",
					"findings_json", "truncated").
				Values(r.ObjectID, r.ObjectName, r.PageName,
					r.StageID, r.StageName, r.Language, r.SourceKind,
					r.CodeText, r.CodePreview, r.LineCount, r.SHA256,
					r.FindingsJSON, r.Truncated).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("write code stage %s/%s: %w", r.ObjectName, r.StageName, err)
			}
		}
		return nil
	})
}

// WriteGlobalCode writes object-level shared code rows.
func (w *Writer) WriteGlobalCode(rows []GlobalCodeRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.inTx(func(tx *sql.Tx) error {
		for _, r := range rows {
			_, err := sq.Insert("object_global_code_report").
				Columns("object_id", "object_name", "language",
					"global_code_text", "line_count", "sha256").
				Values(r.ObjectID, r.ObjectName, r.Language,
					r.CodeText, r.LineCount, r.SHA256).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("write global code for %s: %w", r.ObjectName, err)
			}
		}
		return nil
	})
}

// WriteCredentialUsages writes credential vault usage rows.
func (w *Writer) WriteCredentialUsages(rows []CredentialUsageRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.inTx(func(tx *sql.Tx) error {
		for _, r := range rows {
			_, err := sq.Insert("credential_usage_report").
				Columns("process_name", "page_name", "stage_name").
				Values(r.ProcessName, r.PageName, r.StageName).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("write credential usage: %w", err)
			}
		}
		return nil
	})
}

// WriteSubprocessMappings writes parent → called process links.
func (w *Writer) WriteSubprocessMappings(rows []SubprocessMappingRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.inTx(func(tx *sql.Tx) error {
		for _, r := range rows {
			_, err := sq.Insert("process_subprocess_mapping").
				Columns("parent_processid", "parent_name", "parent_description",
					"called_process_id", "called_process_name").
				Values(r.ParentID, r.ParentName, r.ParentDescription,
					r.CalledID, r.CalledName).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("write subprocess mapping: %w", err)
			}
		}
		return nil
	})
}

// WriteResourceUsages writes both directions of the process↔object
// usage relation.
func (w *Writer) WriteResourceUsages(rows []ResourceUsageRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.inTx(func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := sq.Insert("process_object_report").
				Columns("processid", "name", "description", "resource_object").
				Values(r.ProcessID, r.ProcessName, r.Description, r.ResourceObject).
				RunWith(tx).
				Exec(); err != nil {
				return fmt.Errorf("write process object report: %w", err)
			}
			if _, err := sq.Insert("object_process_report").
				Columns("resource_object", "process_name").
				Values(r.ResourceObject, r.ProcessName).
				RunWith(tx).
				Exec(); err != nil {
				return fmt.Errorf("write object process report: %w", err)
			}
		}
		return nil
	})
}

// WriteLoggingReports writes per-definition logging rows and summaries.
func (w *Writer) WriteLoggingReports(reports []LoggingReportRow, summaries []LoggingSummaryRow) error {
	if len(reports) == 0 && len(summaries) == 0 {
		return nil
	}
	return w.inTx(func(tx *sql.Tx) error {
		for _, r := range reports {
			_, err := sq.Insert("process_logging_report").
				Columns("processid", "enabled_count", "inhibited_count",
					"enabled_names", "inhibited_names").
				Values(r.ProcessID, r.EnabledCount, r.InhibitedCount,
					r.EnabledNames, r.InhibitedNames).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("write logging report: %w", err)
			}
		}
		for _, s := range summaries {
			_, err := sq.Insert("process_logging_summary").
				Columns("processid", "process_name", "total_stages",
					"no_logging_count", "full_logging_count", "error_only_count",
					"no_logging_pct", "full_logging_pct", "error_only_pct").
				Values(s.ProcessID, s.ProcessName, s.TotalStages,
					s.NoLoggingCount, s.FullLoggingCount, s.ErrorOnlyCount,
					s.NoLoggingPct, s.FullLoggingPct, s.ErrorOnlyPct).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("write logging summary: %w", err)
			}
		}
		return nil
	})
}

// WriteProcessDetails writes stage type census rows.
func (w *Writer) WriteProcessDetails(rows []ProcessDetailsRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.inTx(func(tx *sql.Tx) error {
		for _, r := range rows {
			_, err := sq.Insert("process_details").
				Columns("processid", "process_stages", "process_text").
				Values(r.ProcessID, r.StageTypeJSON, r.StageTypeText).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("write process details: %w", err)
			}
		}
		return nil
	})
}

// WriteSummary writes the single corpus summary row.
func (w *Writer) WriteSummary(s SummaryRow) error {
	return w.inTx(func(tx *sql.Tx) error {
		_, err := sq.Insert("summary_report").
			Columns("total_processes", "total_objects", "ratio_process_to_object", "bp_version").
			Values(s.TotalProcesses, s.TotalObjects, s.Ratio, s.BPVersion).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		return nil
	})
}

// BeginRun records the start of a pipeline run and returns its id.
func (w *Writer) BeginRun(kind string) (string, error) {
	runID := uuid.NewString()
	_, err := sq.Insert("audit_runs").
		Columns("run_id", "kind", "started_at", "processed", "skipped").
		Values(runID, kind, time.Now().UTC().Format(time.RFC3339), 0, 0).
		RunWith(w.db).
		Exec()
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return runID, nil
}

// FinishRun records completion counters for a run started via BeginRun.
func (w *Writer) FinishRun(runID string, processed, skipped int) error {
	_, err := sq.Update("audit_runs").
		Set("finished_at", time.Now().UTC().Format(time.RFC3339)).
		Set("processed", processed).
		Set("skipped", skipped).
		Where(sq.Eq{"run_id": runID}).
		RunWith(w.db).
		Exec()
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}
