// Package ingest loads automation export dumps into the audit database.
// The dump is a headerless CSV with one row per process or object
// definition, matching the column order of process_table.
package ingest

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/procsight/procsight/internal/storage"
)

// columnCount is the fixed width of an export row.
const columnCount = 19

var processColumns = []string{
	"processid", "process_type", "name", "description", "version",
	"createdate", "createdby", "lastmodifieddate", "lastmodifiedby",
	"attribute_id", "compressedxml", "processxml", "wspublishname",
	"runmode", "shared_object", "force_literal_form",
	"use_legacy_namespace", "has_startup_parameters", "b2",
}

// Options controls an ingest run.
type Options struct {
	// Replace drops any previously ingested rows before loading.
	Replace bool
}

// Result reports what an ingest run did.
type Result struct {
	Loaded  int
	Skipped int // rows with the wrong column count
}

// File ingests the CSV dump at path.
func File(db *sql.DB, log *zap.Logger, path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open export dump: %w", err)
	}
	defer f.Close()
	return Reader(db, log, f, opts)
}

// Reader ingests a CSV dump from r. Rows that do not have exactly 19
// columns are counted as skipped, not fatal: exports from older
// platform versions occasionally carry ragged trailing rows.
func Reader(db *sql.DB, log *zap.Logger, r io.Reader, opts Options) (Result, error) {
	if err := storage.CreateSchema(db); err != nil {
		return Result{}, err
	}

	tx, err := db.Begin()
	if err != nil {
		return Result{}, fmt.Errorf("begin ingest transaction: %w", err)
	}
	defer tx.Rollback() // safe to call after commit

	if opts.Replace {
		if _, err := tx.Exec("DELETE FROM process_table"); err != nil {
			return Result{}, fmt.Errorf("clear process_table: %w", err)
		}
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // validated per row below
	cr.LazyQuotes = true

	var res Result
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read export row: %w", err)
		}
		if len(record) != columnCount {
			res.Skipped++
			log.Warn("skipping ragged export row",
				zap.Int("columns", len(record)),
				zap.Int("row", res.Loaded+res.Skipped))
			continue
		}

		values := make([]any, columnCount)
		for i, v := range record {
			values[i] = v
		}
		if _, err := sq.Insert("process_table").
			Columns(processColumns...).
			Values(values...).
			RunWith(tx).
			Exec(); err != nil {
			return Result{}, fmt.Errorf("insert export row: %w", err)
		}
		res.Loaded++
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit ingest transaction: %w", err)
	}

	log.Info("ingest complete",
		zap.Int("loaded", res.Loaded),
		zap.Int("skipped", res.Skipped),
		zap.Bool("replace", opts.Replace))
	return res, nil
}
