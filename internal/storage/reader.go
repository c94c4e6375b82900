package storage

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Reader serves the ingested and derived rows to the pipelines and
// reports. Queries go through squirrel so filters compose.
type Reader struct {
	db *sql.DB
}

// NewReader creates a Reader over an open audit database.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// FetchProcesses returns every ingested export row with a non-empty
// XML payload. IDs are upper-cased so call-target lookups are
// case-insensitive.
func (r *Reader) FetchProcesses() ([]ProcessRecord, error) {
	rows, err := sq.Select("processid", "process_type", "name", "description", "processxml").
		From("process_table").
		Where(sq.NotEq{"processxml": ""}).
		OrderBy("rowid").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("query process_table: %w", err)
	}
	defer rows.Close()

	var out []ProcessRecord
	for rows.Next() {
		var rec ProcessRecord
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Name, &rec.Description, &rec.XML); err != nil {
			return nil, fmt.Errorf("scan process row: %w", err)
		}
		rec.ID = strings.ToUpper(rec.ID)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ProcessNameIndex maps upper-cased process ids to names for the
// top-level ("P" type) definitions, used to resolve subprocess call
// targets.
func (r *Reader) ProcessNameIndex() (map[string]string, error) {
	rows, err := sq.Select("processid", "name").
		From("process_table").
		Where(sq.Eq{"process_type": "P"}).
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("query process names: %w", err)
	}
	defer rows.Close()

	index := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan process name: %w", err)
		}
		index[strings.ToUpper(id)] = name
	}
	return index, rows.Err()
}

// CountByType returns how many rows of the given process_type exist.
func (r *Reader) CountByType(processType string) (int, error) {
	var n int
	err := sq.Select("COUNT(*)").
		From("process_table").
		Where(sq.Eq{"process_type": processType}).
		RunWith(r.db).
		QueryRow().
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count process_type %s: %w", processType, err)
	}
	return n, nil
}

// CorpusVersion returns the most common version string across the
// ingested rows, or "" when the table is empty.
func (r *Reader) CorpusVersion() (string, error) {
	var v sql.NullString
	err := r.db.QueryRow(`
		SELECT version FROM process_table
		WHERE version IS NOT NULL AND version != ''
		GROUP BY version ORDER BY COUNT(*) DESC LIMIT 1`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query corpus version: %w", err)
	}
	return v.String, nil
}

// CodeStages returns the per-stage audit records, optionally filtered
// by language ("" matches all).
func (r *Reader) CodeStages(language string) ([]CodeStageRow, error) {
	q := sq.Select("object_id", "object_name", "page_name",
		"stage_id", "stage_name", "language", "source_kind",
		"code_text", "code_preview", "line_count", "sha256",
		"findings_json", "truncated").
		From("object_code_stage_report").
		OrderBy("object_name", "page_name", "stage_name")
	if language != "" {
		q = q.Where(sq.Eq{"language": language})
	}

	rows, err := q.RunWith(r.db).Query()
	if err != nil {
		return nil, fmt.Errorf("query code stages: %w", err)
	}
	defer rows.Close()

	var out []CodeStageRow
	for rows.Next() {
		var row CodeStageRow
		if err := rows.Scan(&row.ObjectID, &row.ObjectName, &row.PageName,
			&row.StageID, &row.StageName, &row.Language, &row.SourceKind,
			&row.CodeText, &row.CodePreview, &row.LineCount, &row.SHA256,
			&row.FindingsJSON, &row.Truncated); err != nil {
			return nil, fmt.Errorf("scan code stage: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GlobalCode returns every object's shared code row.
func (r *Reader) GlobalCode() ([]GlobalCodeRow, error) {
	rows, err := sq.Select("object_id", "object_name", "language",
		"global_code_text", "line_count", "sha256").
		From("object_global_code_report").
		OrderBy("object_name").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("query global code: %w", err)
	}
	defer rows.Close()

	var out []GlobalCodeRow
	for rows.Next() {
		var row GlobalCodeRow
		if err := rows.Scan(&row.ObjectID, &row.ObjectName, &row.Language,
			&row.CodeText, &row.LineCount, &row.SHA256); err != nil {
			return nil, fmt.Errorf("scan global code: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CredentialUsages returns every stage touching the credential vault.
func (r *Reader) CredentialUsages() ([]CredentialUsageRow, error) {
	rows, err := sq.Select("process_name", "page_name", "stage_name").
		From("credential_usage_report").
		OrderBy("process_name", "page_name", "stage_name").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("query credential usage: %w", err)
	}
	defer rows.Close()

	var out []CredentialUsageRow
	for rows.Next() {
		var row CredentialUsageRow
		if err := rows.Scan(&row.ProcessName, &row.PageName, &row.StageName); err != nil {
			return nil, fmt.Errorf("scan credential usage: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SubprocessMappings returns every parent → called process edge.
func (r *Reader) SubprocessMappings() ([]SubprocessMappingRow, error) {
	rows, err := sq.Select("parent_processid", "parent_name", "parent_description",
		"called_process_id", "called_process_name").
		From("process_subprocess_mapping").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("query subprocess mappings: %w", err)
	}
	defer rows.Close()

	var out []SubprocessMappingRow
	for rows.Next() {
		var row SubprocessMappingRow
		if err := rows.Scan(&row.ParentID, &row.ParentName, &row.ParentDescription,
			&row.CalledID, &row.CalledName); err != nil {
			return nil, fmt.Errorf("scan subprocess mapping: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LoggingSummaries returns per-definition logging posture rows.
func (r *Reader) LoggingSummaries() ([]LoggingSummaryRow, error) {
	rows, err := sq.Select("processid", "process_name", "total_stages",
		"no_logging_count", "full_logging_count", "error_only_count",
		"no_logging_pct", "full_logging_pct", "error_only_pct").
		From("process_logging_summary").
		OrderBy("no_logging_pct DESC").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("query logging summaries: %w", err)
	}
	defer rows.Close()

	var out []LoggingSummaryRow
	for rows.Next() {
		var row LoggingSummaryRow
		if err := rows.Scan(&row.ProcessID, &row.ProcessName, &row.TotalStages,
			&row.NoLoggingCount, &row.FullLoggingCount, &row.ErrorOnlyCount,
			&row.NoLoggingPct, &row.FullLoggingPct, &row.ErrorOnlyPct); err != nil {
			return nil, fmt.Errorf("scan logging summary: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Summary returns the corpus summary row, or ok=false when the stats
// pipeline has not run.
func (r *Reader) Summary() (SummaryRow, bool, error) {
	var s SummaryRow
	err := sq.Select("total_processes", "total_objects", "ratio_process_to_object", "bp_version").
		From("summary_report").
		Limit(1).
		RunWith(r.db).
		QueryRow().
		Scan(&s.TotalProcesses, &s.TotalObjects, &s.Ratio, &s.BPVersion)
	if err == sql.ErrNoRows {
		return SummaryRow{}, false, nil
	}
	if err != nil {
		return SummaryRow{}, false, fmt.Errorf("query summary: %w", err)
	}
	return s, true, nil
}

// DuplicateDigests returns code digests shared by more than one stage,
// most-duplicated first.
func (r *Reader) DuplicateDigests() ([]DuplicateDigest, error) {
	rows, err := r.db.Query(`
		SELECT sha256, COUNT(*) AS n
		FROM object_code_stage_report
		WHERE sha256 != ''
		GROUP BY sha256 HAVING n > 1
		ORDER BY n DESC, sha256`)
	if err != nil {
		return nil, fmt.Errorf("query duplicate digests: %w", err)
	}
	defer rows.Close()

	var out []DuplicateDigest
	for rows.Next() {
		var d DuplicateDigest
		if err := rows.Scan(&d.SHA256, &d.Count); err != nil {
			return nil, fmt.Errorf("scan duplicate digest: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
