// Package storage persists a journal of submission outcomes in SQLite.
// Writes are best-effort: a journaling failure is logged and never
// propagates into the submission path.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gateway-fm/volumegen/internal/pipeline"
)

// Entry is one journaled submission outcome.
type Entry struct {
	Time    time.Time
	Account string
	Profile string
	Action  string
	Hash    string
	Nonce   uint64
	GasUsed uint64
	Outcome string
	Detail  string
}

// Journal stores submission outcomes.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJournal opens (or creates) the journal database at dbPath.
func NewJournal(dbPath string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps journal writes from blocking on the Recent readers.
	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	j := &Journal{db: db, logger: logger}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at_ms INTEGER NOT NULL,
		account TEXT NOT NULL,
		profile TEXT NOT NULL,
		action TEXT NOT NULL,
		tx_hash TEXT,
		nonce INTEGER NOT NULL,
		gas_used INTEGER DEFAULT 0,
		outcome TEXT NOT NULL,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at_ms DESC);
	CREATE INDEX IF NOT EXISTS idx_submissions_account ON submissions(account);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record inserts one entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO submissions
			(created_at_ms, account, profile, action, tx_hash, nonce, gas_used, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UnixMilli(), e.Account, e.Profile, e.Action,
		e.Hash, e.Nonce, e.GasUsed, e.Outcome, e.Detail,
	)
	return err
}

// Recent returns the newest entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT created_at_ms, account, profile, action, tx_hash, nonce, gas_used, outcome, detail
		FROM submissions
		ORDER BY created_at_ms DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&ms, &e.Account, &e.Profile, &e.Action,
			&e.Hash, &e.Nonce, &e.GasUsed, &e.Outcome, &e.Detail); err != nil {
			return nil, err
		}
		e.Time = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SubmissionDone journals one pipeline outcome. Implements the
// scheduler's observer; failures are logged only.
func (j *Journal) SubmissionDone(profile string, acct common.Address, action string, res pipeline.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	e := Entry{
		Account: acct.Hex(),
		Profile: profile,
		Action:  action,
		Nonce:   res.Nonce,
		GasUsed: res.GasUsed,
		Outcome: res.Kind.String(),
	}
	if res.Hash != (common.Hash{}) {
		e.Hash = res.Hash.Hex()
	}
	if res.Err != nil {
		e.Detail = res.Err.Error()
	}

	if err := j.Record(ctx, e); err != nil {
		j.logger.Warn("journal write failed", slog.String("error", err.Error()))
	}
}

// CycleDone implements the scheduler's observer. Cycles are not
// journaled.
func (j *Journal) CycleDone(profile string, acct common.Address, completed, target int) {}
