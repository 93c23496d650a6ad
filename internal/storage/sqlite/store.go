// Package sqlite stores run records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dyike/CortexAdvisor/models"
)

var ErrNotFound = errors.New("run not found")

type Store struct {
	db   *sql.DB
	path string
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: dbPath}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    ticker TEXT NOT NULL,
    strategy TEXT NOT NULL,
    horizon TEXT,
    rating TEXT NOT NULL,
    overall_score REAL NOT NULL,
    narrative_source TEXT,
    confidence REAL,
    model TEXT,
    recorded_at INTEGER NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker_recorded ON runs(ticker, recorded_at);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Save inserts rec. Records are write-once; saving the same run id twice
// fails.
func (s *Store) Save(ctx context.Context, rec models.RunRecord) (string, error) {
	if strings.TrimSpace(rec.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, ticker, strategy, horizon, rating, overall_score, narrative_source, confidence, model, recorded_at, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.RunID, rec.Identifier, rec.Strategy, rec.Horizon, string(rec.Rating), rec.OverallScore,
		rec.NarrativeSource, rec.Confidence.Score, rec.Audit.Model, rec.Timestamp.UnixNano(), string(payload))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return s.path + "#" + rec.RunID, nil
}

func (s *Store) Get(ctx context.Context, runID string) (*models.RunRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return decode(payload)
}

// List returns runs newest first. An empty identifier matches all tickers.
func (s *Store) List(ctx context.Context, identifier string, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT payload FROM runs`
	args := []any{}
	if identifier != "" {
		query += ` WHERE ticker = ? COLLATE NOCASE`
		args = append(args, identifier)
	}
	query += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func decode(payload string) (*models.RunRecord, error) {
	var rec models.RunRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &rec, nil
}
