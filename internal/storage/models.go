package storage

// Data transfer structs mirroring the SQL tables in schema.go. These are
// plain rows, not ORM models; the pipelines build them and the writer
// persists them in batches.

// ProcessRecord is one ingested export row from process_table.
type ProcessRecord struct {
	ID          string // upper-cased process id
	Type        string // "P" (process) or "O" (object)
	Name        string
	Description string
	XML         string
}

// CodeStageRow is the per-stage audit record: the recovered code plus
// the derived identity and findings facts.
type CodeStageRow struct {
	ObjectID     string
	ObjectName   string
	PageName     string
	StageID      string
	StageName    string
	Language     string
	SourceKind   string
	CodeText     string // pretty-printed code, what reports render
	CodePreview  string
	LineCount    int    // display line count of CodeText
	SHA256       string // digest of normalized code, not CodeText
	FindingsJSON string
	Truncated    bool
}

// GlobalCodeRow is an object's shared, cross-stage code.
type GlobalCodeRow struct {
	ObjectID   string
	ObjectName string
	Language   string
	CodeText   string
	LineCount  int
	SHA256     string
}

// CredentialUsageRow marks a stage that reads from the credential vault.
type CredentialUsageRow struct {
	ProcessName string
	PageName    string
	StageName   string
}

// SubprocessMappingRow links a parent definition to a process it calls.
type SubprocessMappingRow struct {
	ParentID          string
	ParentName        string
	ParentDescription string
	CalledID          string
	CalledName        string
}

// ResourceUsageRow links a definition to a resource object it uses.
type ResourceUsageRow struct {
	ProcessID      string
	ProcessName    string
	Description    string
	ResourceObject string
}

// LoggingReportRow records which stage names have logging enabled or
// inhibited, as JSON arrays.
type LoggingReportRow struct {
	ProcessID      string
	EnabledCount   int
	InhibitedCount int
	EnabledNames   string // JSON array
	InhibitedNames string // JSON array
}

// LoggingSummaryRow aggregates per-definition logging posture.
type LoggingSummaryRow struct {
	ProcessID        string
	ProcessName      string
	TotalStages      int
	NoLoggingCount   int
	FullLoggingCount int
	ErrorOnlyCount   int
	NoLoggingPct     float64
	FullLoggingPct   float64
	ErrorOnlyPct     float64
}

// ProcessDetailsRow records the per-definition stage type census.
type ProcessDetailsRow struct {
	ProcessID     string
	StageTypeJSON string // JSON object: type → {count, names}
	StageTypeText string // human-readable "Type: N, ..." summary
}

// SummaryRow is the single-row corpus summary.
type SummaryRow struct {
	TotalProcesses int
	TotalObjects   int
	Ratio          float64
	BPVersion      string
}

// DuplicateDigest is a digest shared by more than one code stage,
// used to surface copy-pasted code across objects.
type DuplicateDigest struct {
	SHA256 string
	Count  int
}
