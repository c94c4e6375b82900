package storage

import (
	"database/sql"
	"fmt"
)

// Schema for the audit database. process_table holds the raw ingested
// export rows; every other table is derived and safe to drop and
// rebuild on each run.

const createProcessTable = `
CREATE TABLE IF NOT EXISTS process_table (
	processid TEXT,
	process_type TEXT,
	name TEXT,
	description TEXT,
	version TEXT,
	createdate TEXT,
	createdby TEXT,
	lastmodifieddate TEXT,
	lastmodifiedby TEXT,
	attribute_id TEXT,
	compressedxml TEXT,
	processxml TEXT,
	wspublishname TEXT,
	runmode TEXT,
	shared_object TEXT,
	force_literal_form TEXT,
	use_legacy_namespace TEXT,
	has_startup_parameters TEXT,
	b2 TEXT
)`

const createCodeStageReport = `
CREATE TABLE IF NOT EXISTS object_code_stage_report (
	object_id TEXT,
	object_name TEXT,
	page_name TEXT,
	stage_id TEXT,
	stage_name TEXT,
	language TEXT,
	source_kind TEXT,
	code_text TEXT,
	code_preview TEXT,
	line_count INTEGER,
	sha256 TEXT,
	findings_json TEXT,
	truncated INTEGER
)`

const createGlobalCodeReport = `
CREATE TABLE IF NOT EXISTS object_global_code_report (
	object_id TEXT,
	object_name TEXT,
	language TEXT,
	global_code_text TEXT,
	line_count INTEGER,
	sha256 TEXT
)`

const createCredentialUsageReport = `
CREATE TABLE IF NOT EXISTS credential_usage_report (
	process_name TEXT,
	page_name TEXT,
	stage_name TEXT
)`

const createSubprocessMapping = `
CREATE TABLE IF NOT EXISTS process_subprocess_mapping (
	parent_processid TEXT,
	parent_name TEXT,
	parent_description TEXT,
	called_process_id TEXT,
	called_process_name TEXT
)`

const createProcessObjectReport = `
CREATE TABLE IF NOT EXISTS process_object_report (
	processid TEXT,
	name TEXT,
	description TEXT,
	resource_object TEXT
)`

const createObjectProcessReport = `
CREATE TABLE IF NOT EXISTS object_process_report (
	resource_object TEXT,
	process_name TEXT
)`

const createLoggingReport = `
CREATE TABLE IF NOT EXISTS process_logging_report (
	processid TEXT,
	enabled_count INTEGER,
	inhibited_count INTEGER,
	enabled_names TEXT,
	inhibited_names TEXT
)`

const createLoggingSummary = `
CREATE TABLE IF NOT EXISTS process_logging_summary (
	processid TEXT,
	process_name TEXT,
	total_stages INTEGER,
	no_logging_count INTEGER,
	full_logging_count INTEGER,
	error_only_count INTEGER,
	no_logging_pct REAL,
	full_logging_pct REAL,
	error_only_pct REAL
)`

const createProcessDetails = `
CREATE TABLE IF NOT EXISTS process_details (
	processid TEXT,
	process_stages TEXT,
	process_text TEXT
)`

const createSummaryReport = `
CREATE TABLE IF NOT EXISTS summary_report (
	total_processes INTEGER,
	total_objects INTEGER,
	ratio_process_to_object REAL,
	bp_version TEXT
)`

const createAuditRuns = `
CREATE TABLE IF NOT EXISTS audit_runs (
	run_id TEXT PRIMARY KEY,
	kind TEXT,
	started_at TEXT,
	finished_at TEXT,
	processed INTEGER,
	skipped INTEGER
)`

// detailTables are derived by the details pipeline and reset per run.
var detailTables = []struct {
	name string
	ddl  string
}{
	{"process_subprocess_mapping", createSubprocessMapping},
	{"process_object_report", createProcessObjectReport},
	{"object_process_report", createObjectProcessReport},
	{"process_details", createProcessDetails},
	{"credential_usage_report", createCredentialUsageReport},
	{"process_logging_report", createLoggingReport},
	{"process_logging_summary", createLoggingSummary},
	{"object_code_stage_report", createCodeStageReport},
	{"object_global_code_report", createGlobalCodeReport},
}

// statsTables are derived by the stats pipeline and reset per run.
var statsTables = []struct {
	name string
	ddl  string
}{
	{"summary_report", createSummaryReport},
}

// CreateSchema creates every table the audit pipelines use. All schema
// creation happens in one transaction: it succeeds or fails together.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback() // safe to call after commit

	ddls := []string{createProcessTable, createAuditRuns}
	for _, t := range detailTables {
		ddls = append(ddls, t.ddl)
	}
	for _, t := range statsTables {
		ddls = append(ddls, t.ddl)
	}

	for _, ddl := range ddls {
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

// ResetDetailTables drops and recreates the tables the details pipeline
// writes, so each run starts from a clean slate.
func ResetDetailTables(db *sql.DB) error {
	return resetTables(db, detailTables)
}

// ResetStatsTables drops and recreates the tables owned solely by the
// stats pipeline. Tables shared with the details pipeline are reset by
// ResetDetailTables.
func ResetStatsTables(db *sql.DB) error {
	return resetTables(db, statsTables)
}

func resetTables(db *sql.DB, tables []struct {
	name string
	ddl  string
}) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin reset transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + t.name); err != nil {
			return fmt.Errorf("drop %s: %w", t.name, err)
		}
		if _, err := tx.Exec(t.ddl); err != nil {
			return fmt.Errorf("recreate %s: %w", t.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset transaction: %w", err)
	}
	return nil
}
