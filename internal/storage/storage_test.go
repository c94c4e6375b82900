package storage

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB creates a fresh audit database in a temp dir with the full
// schema applied.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, CreateSchema(db))
	return db
}

// TestSchemaIdempotent verifies that:
// 1. CreateSchema succeeds on an empty database
// 2. a second CreateSchema call on the same database is a no-op
func TestSchemaIdempotent(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	require.NoError(t, CreateSchema(db))
}

// TestResetDetailTables verifies that:
// 1. rows written by the details pipeline survive until a reset
// 2. ResetDetailTables empties derived tables but keeps process_table
func TestResetDetailTables(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)

	_, err := db.Exec(`INSERT INTO process_table
		(processid, process_type, name, description, version, processxml)
		VALUES ('abc-1', 'O', 'Util - Strings', '', '6.10', '<process/>')`)
	require.NoError(t, err)

	require.NoError(t, w.WriteCredentialUsages([]CredentialUsageRow{
		{ProcessName: "Login", PageName: "Main", StageName: "Get Credentials"},
	}))
	usages, err := r.CredentialUsages()
	require.NoError(t, err)
	require.Len(t, usages, 1)

	require.NoError(t, ResetDetailTables(db))

	usages, err = r.CredentialUsages()
	require.NoError(t, err)
	assert.Empty(t, usages)

	procs, err := r.FetchProcesses()
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, "ABC-1", procs[0].ID, "ids are upper-cased on read")
}

// TestCodeStageRoundTrip verifies that:
// 1. WriteCodeStages persists every column
// 2. CodeStages returns rows ordered by object, page, stage
// 3. the language filter narrows the result set
func TestCodeStageRoundTrip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)

	rows := []CodeStageRow{
		{
			ObjectID: "B", ObjectName: "Util - Zip", PageName: "Compress",
			StageID: "s2", StageName: "Do Zip", Language: "C#",
			SourceKind: "Code", CodeText: "zip();", CodePreview: "zip();",
			LineCount: 1, SHA256: "bbb", FindingsJSON: "{}",
		},
		{
			ObjectID: "A", ObjectName: "Util - Strings", PageName: "Trim",
			StageID: "s1", StageName: "Do Trim", Language: "VB",
			SourceKind: "Code", CodeText: "Dim x", CodePreview: "Dim x",
			LineCount: 1, SHA256: "aaa", FindingsJSON: "{}", Truncated: true,
		},
	}
	require.NoError(t, w.WriteCodeStages(rows))

	got, err := r.CodeStages("")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Util - Strings", got[0].ObjectName)
	assert.Equal(t, "Util - Zip", got[1].ObjectName)
	assert.True(t, got[0].Truncated)
	assert.Equal(t, "aaa", got[0].SHA256)

	vbOnly, err := r.CodeStages("VB")
	require.NoError(t, err)
	require.Len(t, vbOnly, 1)
	assert.Equal(t, "Do Trim", vbOnly[0].StageName)
}

// TestDuplicateDigests verifies that:
// 1. digests shared by multiple stages are reported with their counts
// 2. unique and empty digests are excluded
func TestDuplicateDigests(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)

	require.NoError(t, w.WriteCodeStages([]CodeStageRow{
		{ObjectName: "A", StageName: "s1", SHA256: "dup"},
		{ObjectName: "B", StageName: "s2", SHA256: "dup"},
		{ObjectName: "C", StageName: "s3", SHA256: "solo"},
		{ObjectName: "D", StageName: "s4", SHA256: ""},
	}))

	dups, err := r.DuplicateDigests()
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, "dup", dups[0].SHA256)
	assert.Equal(t, 2, dups[0].Count)
}

// TestProcessNameIndex verifies that:
// 1. only "P" type rows participate in the index
// 2. keys are upper-cased for case-insensitive lookup
func TestProcessNameIndex(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	r := NewReader(db)

	_, err := db.Exec(`INSERT INTO process_table (processid, process_type, name, processxml) VALUES
		('p-1', 'P', 'Dispatcher', '<process/>'),
		('o-1', 'O', 'Util - Strings', '<process/>')`)
	require.NoError(t, err)

	index, err := r.ProcessNameIndex()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"P-1": "Dispatcher"}, index)

	nProcs, err := r.CountByType("P")
	require.NoError(t, err)
	assert.Equal(t, 1, nProcs)
}

// TestRunBookkeeping verifies that:
// 1. BeginRun returns a usable run id
// 2. FinishRun records counters against that run
func TestRunBookkeeping(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	w := NewWriter(db)

	runID, err := w.BeginRun("details")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, w.FinishRun(runID, 10, 2))

	var processed, skipped int
	var finished string
	err = db.QueryRow(
		`SELECT processed, skipped, finished_at FROM audit_runs WHERE run_id = ?`, runID).
		Scan(&processed, &skipped, &finished)
	require.NoError(t, err)
	assert.Equal(t, 10, processed)
	assert.Equal(t, 2, skipped)
	assert.NotEmpty(t, finished)
}

// TestLoggingAndSummary verifies that:
// 1. logging reports and summaries round-trip through the writer
// 2. Summary reports ok=false before the stats pipeline runs
func TestLoggingAndSummary(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)

	_, ok, err := r.Summary()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.WriteLoggingReports(
		[]LoggingReportRow{{ProcessID: "P-1", EnabledCount: 3, InhibitedCount: 1,
			EnabledNames: `["a","b","c"]`, InhibitedNames: `["d"]`}},
		[]LoggingSummaryRow{{ProcessID: "P-1", ProcessName: "Dispatcher",
			TotalStages: 4, NoLoggingCount: 1, FullLoggingCount: 3,
			NoLoggingPct: 25, FullLoggingPct: 75}},
	))

	summaries, err := r.LoggingSummaries()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.InDelta(t, 25.0, summaries[0].NoLoggingPct, 0.001)

	require.NoError(t, w.WriteSummary(SummaryRow{
		TotalProcesses: 2, TotalObjects: 4, Ratio: 0.5, BPVersion: "6.10",
	}))
	s, ok, err := r.Summary()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, s.TotalObjects)
	assert.Equal(t, "6.10", s.BPVersion)
}
