package ingest

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/procsight/procsight/internal/storage"
)

// row builds a 19-column export line with the given id, type, name and xml.
func row(id, ptype, name, xml string) string {
	cols := make([]string, 19)
	cols[0] = id
	cols[1] = ptype
	cols[2] = name
	cols[4] = "6.10"
	cols[11] = xml
	return strings.Join(cols, ",")
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestReader verifies that:
// 1. well-formed 19-column rows load into process_table
// 2. ragged rows are skipped and counted, not fatal
func TestReader(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	dump := strings.Join([]string{
		row("p-1", "P", "Dispatcher", "<process/>"),
		row("o-1", "O", "Util - Strings", "<process/>"),
		"short,row",
	}, "\n")

	res, err := Reader(db, zap.NewNop(), strings.NewReader(dump), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 1, res.Skipped)

	procs, err := storage.NewReader(db).FetchProcesses()
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, "P-1", procs[0].ID)
	assert.Equal(t, "Dispatcher", procs[0].Name)
	assert.Equal(t, "<process/>", procs[0].XML)
}

// TestReaderReplace verifies that:
// 1. without Replace, a second ingest appends
// 2. with Replace, previous rows are dropped first
func TestReaderReplace(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	log := zap.NewNop()

	_, err := Reader(db, log, strings.NewReader(row("p-1", "P", "A", "<process/>")), Options{})
	require.NoError(t, err)
	_, err = Reader(db, log, strings.NewReader(row("p-2", "P", "B", "<process/>")), Options{})
	require.NoError(t, err)

	procs, err := storage.NewReader(db).FetchProcesses()
	require.NoError(t, err)
	assert.Len(t, procs, 2)

	res, err := Reader(db, log, strings.NewReader(row("p-3", "P", "C", "<process/>")), Options{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Loaded)

	procs, err = storage.NewReader(db).FetchProcesses()
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, "C", procs[0].Name)
}

// TestReaderQuotedXML verifies that quoted fields containing commas and
// doubled quotes survive the CSV round trip.
func TestReaderQuotedXML(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	xml := `"<process name=""a,b""/>"`
	line := strings.Replace(row("p-1", "P", "Quoted", "XMLQ"), "XMLQ", xml, 1)

	res, err := Reader(db, zap.NewNop(), strings.NewReader(line), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Loaded)

	procs, err := storage.NewReader(db).FetchProcesses()
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, `<process name="a,b"/>`, procs[0].XML)
}

// TestReaderEmpty verifies an empty dump loads zero rows without error.
func TestReaderEmpty(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	res, err := Reader(db, zap.NewNop(), strings.NewReader(""), Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Loaded)
	assert.Zero(t, res.Skipped)
}
