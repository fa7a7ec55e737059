package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/fgoc/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
    id                TEXT PRIMARY KEY,
    status            TEXT NOT NULL,
    source            TEXT NOT NULL DEFAULT '',
    k                 INTEGER NOT NULL,
    mu                REAL NOT NULL,
    alpha1            REAL NOT NULL DEFAULT 0,
    alpha2            REAL NOT NULL DEFAULT 0,
    tau               REAL NOT NULL DEFAULT 0,
    flag_threshold    REAL NOT NULL DEFAULT 0,
    s                 REAL NOT NULL DEFAULT 0,
    p                 REAL NOT NULL DEFAULT 0,
    flag              INTEGER NOT NULL DEFAULT 0,
    fdr               REAL NOT NULL DEFAULT 0,
    fsbi              REAL NOT NULL DEFAULT 0,
    term_sep          REAL NOT NULL DEFAULT 0,
    term_cm           REAL NOT NULL DEFAULT 0,
    degenerate_count  INTEGER NOT NULL DEFAULT 0,
    error_code        TEXT NOT NULL DEFAULT '',
    error             TEXT NOT NULL DEFAULT '',
    scored_at_ns      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_rank ON records(status, s DESC, id ASC);
`

const recordColumns = `id, status, source, k, mu, alpha1, alpha2, tau, flag_threshold,
	s, p, flag, fdr, fsbi, term_sep, term_cm, degenerate_count, error_code, error, scored_at_ns`

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put inserts or replaces a record.
func (s *SQLiteStore) Put(ctx context.Context, r Record) error { //nolint:gocritic // hugeParam: Record is stored by value
	if r.ID == "" {
		return ErrInvalidID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Status), r.Source, r.K, r.Mu,
		r.Params.Alpha1, r.Params.Alpha2, r.Params.Tau, r.Params.FlagThreshold,
		r.S, r.P, r.Flag, r.FDR, r.FSBI, r.TermSep, r.TermCM, r.DegenerateCount,
		r.ErrorCode, r.Error, r.ScoredAt.UnixNano(),
	)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "sqlite_put")
		return fmt.Errorf("put record %q: %w", r.ID, err)
	}

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateRepositoryRecords(n)
	}
	return nil
}

// Get returns a record with its current anomaly rank.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	start := time.Now()
	defer observeQuery(start)

	r, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.RecordErrorByComponent("repository", "not_found")
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get record %q: %w", id, err)
	}

	if r.Status == StatusScored {
		var ahead int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM records
			WHERE status = ? AND (s > ? OR (s = ? AND id < ?))`,
			string(StatusScored), r.S, r.S, r.ID,
		).Scan(&ahead)
		if err != nil {
			return Record{}, fmt.Errorf("rank record %q: %w", id, err)
		}
		r.Rank = ahead + 1
	}
	return r, nil
}

// TopN returns the n most anomalous scored records.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]Record, error) {
	start := time.Now()
	defer observeQuery(start)

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE status = ?
		ORDER BY s DESC, id ASC
		LIMIT ?`, string(StatusScored), n)
	if err != nil {
		return nil, fmt.Errorf("query top records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r        Record
		status   string
		scoredNs int64
	)
	err := row.Scan(
		&r.ID, &status, &r.Source, &r.K, &r.Mu,
		&r.Params.Alpha1, &r.Params.Alpha2, &r.Params.Tau, &r.Params.FlagThreshold,
		&r.S, &r.P, &r.Flag, &r.FDR, &r.FSBI, &r.TermSep, &r.TermCM, &r.DegenerateCount,
		&r.ErrorCode, &r.Error, &scoredNs,
	)
	if err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	r.ScoredAt = time.Unix(0, scoredNs).UTC()
	return r, nil
}
