package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    data TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS conversion_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    experiment_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    value REAL NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_experiment ON conversion_events(experiment_id);
CREATE INDEX IF NOT EXISTS idx_events_created ON conversion_events(created_at);
`

func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; callers queue on the pool and give up with their context.
	db.SetMaxOpenConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Record, error) {
	rec := Record{Key: key}
	var data string

	err := s.db.QueryRowContext(ctx,
		`SELECT version, data FROM experiments WHERE id = ?`, key,
	).Scan(&rec.Version, &data)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", classify(err))
	}

	rec.Data = []byte(data)
	return &rec, nil
}

func (s *SQLiteStore) Create(ctx context.Context, key string, data []byte) (*Record, error) {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (id, version, data, created_at, updated_at) VALUES (?, 1, ?, ?, ?)`,
		key, string(data), now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("failed to insert experiment: %w", classify(err))
	}

	return &Record{Key: key, Version: 1, Data: data}, nil
}

func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key string, expected uint64, data []byte, events ...ConversionEvent) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE experiments SET data = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		string(data), time.Now().Unix(), key, expected,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update experiment: %w", classify(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM experiments WHERE id = ?`, key).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check experiment: %w", classify(err))
		}
		return nil, ErrConflict
	}

	for _, e := range events {
		if err := insertEvent(ctx, tx, e); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", classify(err))
	}

	return &Record{Key: key, Version: expected + 1, Data: data}, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", classify(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, data FROM experiments ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", classify(err))
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var data string
		if err := rows.Scan(&rec.Key, &rec.Version, &data); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		rec.Data = []byte(data)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, event ConversionEvent) error {
	return insertEvent(ctx, s.db, event)
}

func (s *SQLiteStore) Events(ctx context.Context, experimentID string) ([]ConversionEvent, error) {
	query := `SELECT experiment_id, variant_id, value, created_at FROM conversion_events`
	var args []any
	if experimentID != "" {
		query += ` WHERE experiment_id = ?`
		args = append(args, experimentID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", classify(err))
	}
	defer rows.Close()

	var events []ConversionEvent
	for rows.Next() {
		var e ConversionEvent
		var createdAt int64
		if err := rows.Scan(&e.ExperimentID, &e.VariantID, &e.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, createdAt).UTC()
		events = append(events, e)
	}

	return events, rows.Err()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, e ConversionEvent) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO conversion_events (experiment_id, variant_id, value, created_at) VALUES (?, ?, ?, ?)`,
		e.ExperimentID, e.VariantID, e.Value, e.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", classify(err))
	}
	return nil
}

// classify tags timeouts and lock contention as ErrUnavailable so callers can retry.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrUnavailable, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return errors.Join(ErrUnavailable, err)
	}
	return err
}
