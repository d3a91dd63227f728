package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/mediacrawler-panel/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS worker_runs (
	id            TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	platform      TEXT NOT NULL DEFAULT '',
	keywords      TEXT NOT NULL DEFAULT '[]',
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER,
	status        TEXT NOT NULL,
	exit_code     INTEGER,
	lines         INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS worker_runs_started ON worker_runs(started_at DESC);
`

const selectColumns = `id, mode, platform, keywords, started_at, finished_at, status, exit_code, lines, error_message`

// RunStore implements store.RunRepository on SQLite.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (creating if needed) the history database at path.
func NewRunStore(path string, opts ...Option) (*RunStore, error) {
	db, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	s, err := NewRunStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewRunStoreWithDB applies the schema to an existing handle.
func NewRunStoreWithDB(db *sql.DB) (*RunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &RunStore{db: db}, nil
}

// Close releases the database handle.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// UpsertRunStart inserts a running row or refreshes its metadata.
func (s *RunStore) UpsertRunStart(ctx context.Context, run store.RunStart) error {
	keywords, err := encodeKeywords(run.Keywords)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO worker_runs (id, mode, platform, keywords, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET mode = excluded.mode, platform = excluded.platform,
			keywords = excluded.keywords, started_at = excluded.started_at`,
		run.ID.String(), run.Mode, run.Platform, keywords, run.StartedAt.UnixNano(), string(store.RunRunning))
	if err != nil {
		return fmt.Errorf("failed to upsert run start: %w", err)
	}
	return nil
}

// AddOutputLines increments the captured line counter.
func (s *RunStore) AddOutputLines(ctx context.Context, runID uuid.UUID, delta int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE worker_runs SET lines = lines + ? WHERE id = ?`, delta, runID.String())
	if err != nil {
		return fmt.Errorf("failed to add output lines: %w", err)
	}
	return requireRow(res)
}

// CompleteRun marks a run finished.
func (s *RunStore) CompleteRun(ctx context.Context, runID uuid.UUID, done store.RunCompletion) error {
	var exitCode sql.NullInt64
	if done.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*done.ExitCode), Valid: true}
	}
	var errMsg sql.NullString
	if done.ErrorMessage != nil {
		errMsg = sql.NullString{String: *done.ErrorMessage, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE worker_runs
		SET finished_at = ?, status = ?, exit_code = ?, error_message = ?
		WHERE id = ?`,
		done.FinishedAt.UnixNano(), string(done.Status), exitCode, errMsg, runID.String())
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return requireRow(res)
}

// GetRun retrieves a single run by its ID.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM worker_runs WHERE id = ?`, runID.String())
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.RunRecord{}, store.ErrNotFound
		}
		return store.RunRecord{}, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListRuns retrieves runs newest first, with optional status filtering.
func (s *RunStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.RunRecord, error) {
	var statusArg sql.NullString
	if status != nil {
		statusArg = sql.NullString{String: string(*status), Valid: true}
	}
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM worker_runs
		WHERE (?1 IS NULL OR status = ?1)
		ORDER BY started_at DESC, id DESC
		LIMIT ?2 OFFSET ?3`, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (store.RunRecord, error) {
	var (
		rec      store.RunRecord
		id       string
		keywords string
		started  int64
		finished sql.NullInt64
		status   string
		exitCode sql.NullInt64
		errMsg   sql.NullString
	)
	if err := row.Scan(&id, &rec.Mode, &rec.Platform, &keywords, &started, &finished, &status, &exitCode, &rec.Lines, &errMsg); err != nil {
		return store.RunRecord{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return store.RunRecord{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	rec.ID = parsed
	if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
		return store.RunRecord{}, fmt.Errorf("decode keywords: %w", err)
	}
	rec.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		rec.FinishedAt = &t
	}
	rec.Status = store.RunStatus(status)
	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}
	if errMsg.Valid {
		msg := errMsg.String
		rec.ErrorMessage = &msg
	}
	return rec, nil
}

func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("encode keywords: %w", err)
	}
	return string(data), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
