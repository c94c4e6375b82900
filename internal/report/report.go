// Package report renders the audit database into reviewable artifacts:
// a standalone HTML report and a JSONL export of recovered code stages.
package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/procsight/procsight/internal/pipeline"
	"github.com/procsight/procsight/internal/storage"
)

// Data is everything the HTML template renders.
type Data struct {
	Customer    string
	GeneratedAt string
	Summary     storage.SummaryRow
	HasSummary  bool
	CodeStages  []CodeStageView
	GlobalCode  []storage.GlobalCodeRow
	Logging     []storage.LoggingSummaryRow
	Credentials []storage.CredentialUsageRow
	CallGraph   *pipeline.CallGraphStats
	Duplicates  []storage.DuplicateDigest
}

// CodeStageView is a code stage row with its findings decoded for
// badge rendering.
type CodeStageView struct {
	storage.CodeStageRow
	Badges []string
}

// findingBadges maps findings JSON keys to report badge labels.
var findingBadges = []struct {
	key   string
	label string
}{
	{"has_sql_keywords", "SQL"},
	{"has_http", "HTTP"},
	{"has_file_io", "File I/O"},
	{"has_crypto", "Crypto"},
	{"has_reflection", "Reflection"},
	{"has_process_start", "Process start"},
	{"has_hardcoded_credential_like", "Credential-like"},
	{"mentions_platform_internals", "Platform internals"},
}

// Collect gathers every section of the report from the audit database.
func Collect(db *sql.DB, customer string) (*Data, error) {
	r := storage.NewReader(db)

	data := &Data{
		Customer:    customer,
		GeneratedAt: time.Now().Format("2006-01-02 15:04"),
	}

	summary, ok, err := r.Summary()
	if err != nil {
		return nil, err
	}
	data.Summary, data.HasSummary = summary, ok

	stages, err := r.CodeStages("")
	if err != nil {
		return nil, err
	}
	for _, st := range stages {
		view := CodeStageView{CodeStageRow: st}
		var flags map[string]any
		if err := json.Unmarshal([]byte(st.FindingsJSON), &flags); err == nil {
			for _, b := range findingBadges {
				if v, ok := flags[b.key].(bool); ok && v {
					view.Badges = append(view.Badges, b.label)
				}
			}
		}
		data.CodeStages = append(data.CodeStages, view)
	}

	if data.GlobalCode, err = r.GlobalCode(); err != nil {
		return nil, err
	}
	if data.Logging, err = r.LoggingSummaries(); err != nil {
		return nil, err
	}
	if data.Credentials, err = r.CredentialUsages(); err != nil {
		return nil, err
	}
	if data.Duplicates, err = r.DuplicateDigests(); err != nil {
		return nil, err
	}
	if data.CallGraph, err = pipeline.BuildCallGraph(db); err != nil {
		return nil, err
	}

	return data, nil
}

// WriteHTML renders the report to w.
func WriteHTML(w io.Writer, data *Data) error {
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// stageExport is one JSONL line of the code stage export.
type stageExport struct {
	ObjectID   string          `json:"object_id"`
	ObjectName string          `json:"object_name"`
	PageName   string          `json:"page_name"`
	StageID    string          `json:"stage_id"`
	StageName  string          `json:"stage_name"`
	Language   string          `json:"language"`
	SourceKind string          `json:"source_kind"`
	SHA256     string          `json:"sha256"`
	LineCount  int             `json:"line_count"`
	Code       string          `json:"code"`
	Findings   json.RawMessage `json:"findings"`
	Truncated  bool            `json:"truncated,omitempty"`
}

// WriteJSONL streams every code stage as one JSON object per line,
// the shape downstream tooling ingests.
func WriteJSONL(w io.Writer, db *sql.DB) (int, error) {
	stages, err := storage.NewReader(db).CodeStages("")
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for _, st := range stages {
		findings := json.RawMessage(st.FindingsJSON)
		if !json.Valid(findings) {
			findings = json.RawMessage("{}")
		}
		line := stageExport{
			ObjectID:   st.ObjectID,
			ObjectName: st.ObjectName,
			PageName:   st.PageName,
			StageID:    st.StageID,
			StageName:  st.StageName,
			Language:   st.Language,
			SourceKind: st.SourceKind,
			SHA256:     st.SHA256,
			LineCount:  st.LineCount,
			Code:       st.CodeText,
			Findings:   findings,
			Truncated:  st.Truncated,
		}
		if err := enc.Encode(line); err != nil {
			return 0, fmt.Errorf("encode export line: %w", err)
		}
	}
	return len(stages), nil
}

var reportTemplate = template.Must(template.New("report").Parse(reportHTML))

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Automation Code Audit{{if .Customer}} — {{.Customer}}{{end}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 72rem; color: #1b1f24; }
h1 { border-bottom: 2px solid #d0d7de; padding-bottom: .4rem; }
h2 { margin-top: 2.5rem; }
table { border-collapse: collapse; width: 100%; font-size: .9rem; }
th, td { border: 1px solid #d0d7de; padding: .35rem .6rem; text-align: left; vertical-align: top; }
th { background: #f6f8fa; }
pre { background: #f6f8fa; padding: .6rem; overflow-x: auto; font-size: .8rem; margin: 0; }
.badge { display: inline-block; background: #b35900; color: #fff; border-radius: .6rem; padding: 0 .5rem; font-size: .75rem; margin-right: .25rem; }
.muted { color: #57606a; }
.trunc { color: #a40e26; font-size: .75rem; }
</style>
</head>
<body>
<h1>Automation Code Audit{{if .Customer}} — {{.Customer}}{{end}}</h1>
<p class="muted">Generated {{.GeneratedAt}}</p>

{{if .HasSummary}}
<h2>Summary</h2>
<table>
<tr><th>Processes</th><th>Objects</th><th>Process / object ratio</th><th>Platform version</th></tr>
<tr><td>{{.Summary.TotalProcesses}}</td><td>{{.Summary.TotalObjects}}</td><td>{{printf "%.2f" .Summary.Ratio}}</td><td>{{.Summary.BPVersion}}</td></tr>
</table>
{{end}}

<h2>Code stages ({{len .CodeStages}})</h2>
{{if .CodeStages}}
<table>
<tr><th>Object</th><th>Page</th><th>Stage</th><th>Language</th><th>Lines</th><th>Findings</th><th>Code</th></tr>
{{range .CodeStages}}
<tr>
<td>{{.ObjectName}}</td>
<td>{{.PageName}}</td>
<td>{{.StageName}}<br><span class="muted">{{.SHA256}}</span></td>
<td>{{.Language}}</td>
<td>{{.LineCount}}</td>
<td>{{range .Badges}}<span class="badge">{{.}}</span>{{end}}</td>
<td><pre>{{.CodeText}}</pre>{{if .Truncated}}<span class="trunc">formatting skipped: fragment over size cutoff</span>{{end}}</td>
</tr>
{{end}}
</table>
{{else}}<p class="muted">No embedded code recovered.</p>{{end}}

{{if .GlobalCode}}
<h2>Object global code</h2>
<table>
<tr><th>Object</th><th>Language</th><th>Lines</th><th>Code</th></tr>
{{range .GlobalCode}}
<tr><td>{{.ObjectName}}</td><td>{{.Language}}</td><td>{{.LineCount}}</td><td><pre>{{.CodeText}}</pre></td></tr>
{{end}}
</table>
{{end}}

<h2>Logging posture</h2>
{{if .Logging}}
<table>
<tr><th>Definition</th><th>Stages</th><th>Full logging</th><th>Error only</th><th>No logging</th></tr>
{{range .Logging}}
<tr><td>{{.ProcessName}}</td><td>{{.TotalStages}}</td><td>{{printf "%.2f" .FullLoggingPct}}%</td><td>{{printf "%.2f" .ErrorOnlyPct}}%</td><td>{{printf "%.2f" .NoLoggingPct}}%</td></tr>
{{end}}
</table>
{{else}}<p class="muted">No logging data; run the analysis first.</p>{{end}}

{{if .Credentials}}
<h2>Credential vault usage</h2>
<table>
<tr><th>Definition</th><th>Page</th><th>Stage</th></tr>
{{range .Credentials}}
<tr><td>{{.ProcessName}}</td><td>{{.PageName}}</td><td>{{.StageName}}</td></tr>
{{end}}
</table>
{{end}}

{{if .CallGraph}}
<h2>Call structure</h2>
<p>{{.CallGraph.Nodes}} definitions, {{.CallGraph.Edges}} call edges.</p>
{{if .CallGraph.Cycles}}
<h3>Call cycles</h3>
<ul>
{{range .CallGraph.Cycles}}<li>{{range $i, $n := .}}{{if $i}} &harr; {{end}}{{$n}}{{end}}</li>{{end}}
</ul>
{{end}}
{{if .CallGraph.FanOut}}
<h3>Widest callers</h3>
<table>
<tr><th>Definition</th><th>Distinct processes called</th></tr>
{{range .CallGraph.FanOut}}
<tr><td>{{.Name}}</td><td>{{.Count}}</td></tr>
{{end}}
</table>
{{end}}
{{end}}

{{if .Duplicates}}
<h2>Duplicated code</h2>
<table>
<tr><th>Digest</th><th>Stages sharing it</th></tr>
{{range .Duplicates}}
<tr><td>{{.SHA256}}</td><td>{{.Count}}</td></tr>
{{end}}
</table>
{{end}}

</body>
</html>
`
