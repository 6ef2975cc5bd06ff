package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agonlabs/agon/internal/model"

	_ "modernc.org/sqlite"
)

const createSchema = `
CREATE TABLE IF NOT EXISTS transactions (
    id         TEXT PRIMARY KEY,
    timestamp  DATETIME NOT NULL,
    actor      TEXT NOT NULL,
    delta      INTEGER NOT NULL,
    balance    INTEGER NOT NULL,
    reason     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ruleset_versions (
    id         TEXT PRIMARY KEY,
    timestamp  DATETIME NOT NULL,
    author     TEXT NOT NULL,
    old_text   TEXT NOT NULL,
    new_text   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rounds (
    id              TEXT PRIMARY KEY,
    problem_id      TEXT NOT NULL,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME NOT NULL,
    ruleset_updated INTEGER NOT NULL,
    results         TEXT NOT NULL
)`

// ErrNotFound is returned when a round is not found.
var ErrNotFound = errors.New("round not found")

// Compile-time interface satisfaction check.
var _ Recorder = (*SQLiteStore)(nil)

// SQLiteStore implements Recorder using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordTransaction appends one ledger entry to the audit trail.
func (s *SQLiteStore) RecordTransaction(ctx context.Context, txn model.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, timestamp, actor, delta, balance, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.Timestamp, txn.Actor, txn.Delta, txn.Balance, txn.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// RecordRulesetVersion appends one constitution edit to the audit trail.
func (s *SQLiteStore) RecordRulesetVersion(ctx context.Context, v model.RulesetVersion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ruleset_versions (id, timestamp, author, old_text, new_text)
		VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.Timestamp, v.Author, v.OldText, v.NewText,
	)
	if err != nil {
		return fmt.Errorf("insert ruleset version: %w", err)
	}
	return nil
}

// RecordRound persists a completed round. Per-agent results are stored as a
// JSON document; nothing queries into them, they only need to round-trip.
func (s *SQLiteStore) RecordRound(ctx context.Context, round *model.Round) error {
	results, err := json.Marshal(round.Results)
	if err != nil {
		return fmt.Errorf("marshal round results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rounds (id, problem_id, started_at, finished_at, ruleset_updated, results)
		VALUES (?, ?, ?, ?, ?, ?)`,
		round.ID, round.ProblemID, round.StartedAt, round.FinishedAt, round.RulesetUpdated, string(results),
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// GetRound retrieves a persisted round by ID.
func (s *SQLiteStore) GetRound(ctx context.Context, id string) (*model.Round, error) {
	r := &model.Round{}
	var results string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, problem_id, started_at, finished_at, ruleset_updated, results
		FROM rounds WHERE id = ?`, id,
	).Scan(&r.ID, &r.ProblemID, &r.StartedAt, &r.FinishedAt, &r.RulesetUpdated, &results)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &r.Results); err != nil {
		return nil, fmt.Errorf("unmarshal round results: %w", err)
	}
	return r, nil
}

// ListTransactions returns all persisted transactions in insertion order.
func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, actor, delta, balance, reason
		FROM transactions ORDER BY timestamp ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Actor, &t.Delta, &t.Balance, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}
