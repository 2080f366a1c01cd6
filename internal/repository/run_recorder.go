package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"CryptoCast/internal/domain/models"
	domrepo "CryptoCast/internal/domain/repository"

	_ "modernc.org/sqlite"
)

// SQLiteRunRecorder keeps pipeline run history in a SQLite database.
type SQLiteRunRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

var _ domrepo.RunRecorder = (*SQLiteRunRecorder)(nil)

// NewSQLiteRunRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRunRecorder(dbPath string) (*SQLiteRunRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// readers (the runs endpoint) do not block the writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	r := &SQLiteRunRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRunRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id           TEXT NOT NULL,
			pipeline_name    TEXT NOT NULL,
			status           TEXT NOT NULL,
			message          TEXT,
			error_kind       TEXT,
			duration_seconds REAL,
			started_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON pipeline_runs(started_at)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRunRecorder) RecordRun(ctx context.Context, res models.PipelineResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO pipeline_runs
		(run_id, pipeline_name, status, message, error_kind, duration_seconds, started_at)
		VALUES (?,?,?,?,?,?,?)`,
		res.RunID, res.PipelineName, res.Status, res.Message, res.ErrorKind,
		res.DurationSeconds, res.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *SQLiteRunRecorder) RecentRuns(ctx context.Context, limit int) ([]models.PipelineResult, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT run_id, pipeline_name, status, message, error_kind, duration_seconds, started_at
		FROM pipeline_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.PipelineResult, 0, limit)
	for rows.Next() {
		var (
			res       models.PipelineResult
			msg, kind sql.NullString
			started   int64
		)
		if err := rows.Scan(&res.RunID, &res.PipelineName, &res.Status, &msg, &kind, &res.DurationSeconds, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		res.Message, res.ErrorKind = msg.String, kind.String
		res.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *SQLiteRunRecorder) Close() error {
	return r.db.Close()
}
