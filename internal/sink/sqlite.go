package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const samplesSchemaSQL = `
CREATE TABLE IF NOT EXISTS samples (
	run_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	symbol TEXT NOT NULL,
	data_type TEXT NOT NULL,
	ts_ns INTEGER NOT NULL,
	ts TEXT NOT NULL,
	vals TEXT NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (run_id, exchange, ts_ns)
);`

// SQLite stores records in a single samples table.
type SQLite struct {
	path string
	db   *sql.DB
}

// OpenSQLite creates (if needed) and opens the database and its schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, samplesSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create samples table: %w", err)
	}
	return &SQLite{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

func (s *SQLite) Name() string { return "sqlite" }

// Path returns the path backing the store.
func (s *SQLite) Path() string { return s.path }

// Write inserts the batch in one transaction. A row with the same run,
// exchange and timestamp is replaced.
func (s *SQLite) Write(ctx context.Context, batch *Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO samples (run_id, exchange, symbol, data_type, ts_ns, ts, vals, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch.Records {
		vals, err := json.Marshal(r.Values)
		if err != nil {
			return fmt.Errorf("encode values: %w", err)
		}
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			batch.RunID,
			r.Exchange,
			batch.Symbol,
			batch.DataType,
			r.Timestamp.UnixNano(),
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			string(vals),
			string(payload),
		); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// Count returns the number of rows stored for a run and exchange.
func (s *SQLite) Count(ctx context.Context, runID, exchange string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM samples WHERE run_id = ? AND exchange = ?`, runID, exchange).Scan(&n)
	return n, err
}

// Close closes the DB.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
