package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"datacleaner/internal"
)

const MetaLastRunAt = "last_run_at"

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  source TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL,
  chunks INTEGER NOT NULL DEFAULT 0,
  rowsRead INTEGER NOT NULL DEFAULT 0,
  rowsKept INTEGER NOT NULL DEFAULT 0,
  duplicates INTEGER NOT NULL DEFAULT 0,
  skippedLines INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  timingsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);

CREATE TABLE IF NOT EXISTS artifacts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId INTEGER NOT NULL,
  format TEXT NOT NULL,
  path TEXT NOT NULL,
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_runId ON artifacts(runId);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// RecordRun stores one processed file and its artifacts, and returns the
// new run id.
func (d *DB) RecordRun(run internal.RunRecord) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	timings := run.Timings
	if timings == nil {
		timings = map[string]float64{}
	}
	timingsJSON, _ := json.Marshal(timings)
	result, err := tx.Exec(`
INSERT INTO runs (traceId, source, kind, status, chunks, rowsRead, rowsKept, duplicates, skippedLines, error, timingsJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.TraceID, run.Source, run.Kind, string(run.Status), run.Chunks, run.RowsRead, run.RowsKept, run.Duplicates, run.SkippedLines, run.Error, string(timingsJSON))
	if err != nil {
		return 0, err
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO artifacts (runId, format, path) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, a := range run.Artifacts {
		if _, err := stmt.Exec(runID, a.Format, a.Path); err != nil {
			return 0, err
		}
	}

	return runID, tx.Commit()
}

// ListRuns returns the most recent runs first, artifacts included.
func (d *DB) ListRuns(limit int) ([]internal.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, source, kind, status, chunks, rowsRead, rowsKept, duplicates, skippedLines, error, timingsJson, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}

	var out []internal.RunRecord
	for rows.Next() {
		var run internal.RunRecord
		var status, timingsJSON string
		if err := rows.Scan(&run.ID, &run.TraceID, &run.Source, &run.Kind, &status, &run.Chunks, &run.RowsRead, &run.RowsKept, &run.Duplicates, &run.SkippedLines, &run.Error, &timingsJSON, &run.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		run.Status = internal.RunStatus(status)
		_ = json.Unmarshal([]byte(timingsJSON), &run.Timings)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range out {
		artifacts, err := d.listArtifacts(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Artifacts = artifacts
	}
	return out, nil
}

func (d *DB) listArtifacts(runID int64) ([]internal.Artifact, error) {
	rows, err := d.conn.Query(`SELECT format, path FROM artifacts WHERE runId = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Artifact
	for rows.Next() {
		var a internal.Artifact
		if err := rows.Scan(&a.Format, &a.Path); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
