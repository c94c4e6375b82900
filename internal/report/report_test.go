package report

import (
	"bufio"
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procsight/procsight/internal/storage"
)

func seedReportDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.CreateSchema(db))

	w := storage.NewWriter(db)
	require.NoError(t, w.WriteCodeStages([]storage.CodeStageRow{
		{
			ObjectID: "O-1", ObjectName: "Util - Strings", PageName: "Main Sheet",
			StageID: "s1", StageName: "Run Query", Language: "C#",
			SourceKind: "Raw", CodeText: "exec(\"SELECT 1\");",
			CodePreview: "exec(\"SELECT 1\");", LineCount: 1, SHA256: "abc123",
			FindingsJSON: `{"has_sql_keywords":true,"has_http":false,"urls":[]}`,
		},
		{
			ObjectID: "O-2", ObjectName: "Util - Zip", PageName: "Main Sheet",
			StageID: "s2", StageName: "Copy", Language: "VB",
			SourceKind: "Raw", CodeText: "Dim x <b>1</b>",
			CodePreview: "Dim x", LineCount: 1, SHA256: "abc123",
			FindingsJSON: `{}`,
		},
	}))
	require.NoError(t, w.WriteCredentialUsages([]storage.CredentialUsageRow{
		{ProcessName: "Login", PageName: "Main Sheet", StageName: "Get Credentials"},
	}))
	require.NoError(t, w.WriteSummary(storage.SummaryRow{
		TotalProcesses: 2, TotalObjects: 4, Ratio: 0.5, BPVersion: "6.10",
	}))
	return db
}

// TestWriteHTML verifies that:
// 1. every populated section renders
// 2. findings become badges
// 3. code is HTML-escaped
func TestWriteHTML(t *testing.T) {
	t.Parallel()

	db := seedReportDB(t)
	data, err := Collect(db, "Acme Corp")
	require.NoError(t, err)
	require.Len(t, data.CodeStages, 2)
	assert.Equal(t, []string{"SQL"}, data.CodeStages[0].Badges)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, data))
	html := buf.String()

	assert.Contains(t, html, "Acme Corp")
	assert.Contains(t, html, "Util - Strings")
	assert.Contains(t, html, `<span class="badge">SQL</span>`)
	assert.Contains(t, html, "Get Credentials")
	assert.Contains(t, html, "6.10")
	assert.Contains(t, html, "Duplicated code")
	assert.Contains(t, html, "abc123")
	assert.NotContains(t, html, "<b>1</b>", "code must be escaped")
}

// TestWriteHTMLEmpty verifies an empty database still renders.
func TestWriteHTMLEmpty(t *testing.T) {
	t.Parallel()

	db, err := storage.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.CreateSchema(db))

	data, err := Collect(db, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, data))
	assert.Contains(t, buf.String(), "No embedded code recovered")
}

// TestWriteJSONL verifies that:
// 1. one valid JSON object is emitted per code stage
// 2. findings embed as raw JSON, not a re-encoded string
func TestWriteJSONL(t *testing.T) {
	t.Parallel()

	db := seedReportDB(t)
	var buf bytes.Buffer
	n, err := WriteJSONL(&buf, db)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	raw := buf.String()

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)

	first := lines[0]
	assert.Equal(t, "Util - Strings", first["object_name"])
	assert.Equal(t, "C#", first["language"])
	findings, ok := first["findings"].(map[string]any)
	require.True(t, ok, "findings must be an embedded object")
	assert.Equal(t, true, findings["has_sql_keywords"])
	assert.False(t, strings.Contains(raw, `\"has_sql_keywords\"`))
}
