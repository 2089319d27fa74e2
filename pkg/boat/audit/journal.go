// Package audit keeps the dispatch journal: one SQLite row for every
// message that matched a registered command, with its outcome. It is an
// operational log for the host and never feeds back into dispatch.
package audit

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
	"golang.org/x/crypto/blake2b"

	"github.com/jholhewres/boat/pkg/boat/dispatch"
)

// schema is executed on every open (idempotent via IF NOT EXISTS).
const schema = `
CREATE TABLE IF NOT EXISTS dispatch_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    channel     TEXT DEFAULT '',
    chat_id     TEXT DEFAULT '',
    kind        TEXT DEFAULT '',
    sender_id   TEXT DEFAULT '',
    sender_name TEXT DEFAULT '',
    command     TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    duration_ms INTEGER DEFAULT 0,
    error       TEXT DEFAULT '',
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatch_log_created ON dispatch_log(created_at);

CREATE TABLE IF NOT EXISTS journal_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// DefaultRetention is how long rows are kept when Options.Retention is zero.
const DefaultRetention = 30 * 24 * time.Hour

// Options configures a Journal.
type Options struct {
	// Path of the database file. Parent directories are created.
	Path string

	// HashSenders stores keyed BLAKE2b digests instead of sender ids and
	// names. The key is generated once and kept in the database, so the
	// same sender always maps to the same digest.
	HashSenders bool

	// Retention drops older rows on open. Negative keeps everything.
	Retention time.Duration

	Logger *slog.Logger
}

// Entry is one journal row.
type Entry struct {
	ID         int64
	RunID      string
	Channel    string
	ChatID     string
	Kind       string
	SenderID   string
	SenderName string
	Command    string
	Outcome    dispatch.Outcome
	Duration   time.Duration
	Error      string
	CreatedAt  time.Time
}

// Journal records dispatch runs. It implements dispatch.Observer.
type Journal struct {
	db      *sql.DB
	hashKey []byte
	logger  *slog.Logger
}

// Open opens (or creates) the journal and prunes expired rows.
func Open(opts Options) (*Journal, error) {
	if opts.Path == "" {
		opts.Path = "./data/boat.db"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory %q: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", opts.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", opts.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	j := &Journal{db: db, logger: logger.With("component", "audit")}

	if opts.HashSenders {
		if j.hashKey, err = j.loadHashKey(); err != nil {
			db.Close()
			return nil, err
		}
	}

	retention := opts.Retention
	if retention == 0 {
		retention = DefaultRetention
	}
	if retention > 0 {
		n, err := j.Prune(context.Background(), time.Now().Add(-retention))
		if err != nil {
			db.Close()
			return nil, err
		}
		if n > 0 {
			j.logger.Info("pruned dispatch journal", "rows", n, "retention", retention.String())
		}
	}
	return j, nil
}

// loadHashKey reads the sender hashing key, creating it on first use.
func (j *Journal) loadHashKey() ([]byte, error) {
	var encoded string
	err := j.db.QueryRow(`SELECT value FROM journal_meta WHERE key = 'sender_key'`).Scan(&encoded)
	switch {
	case err == nil:
		return hex.DecodeString(encoded)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("read sender key: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate sender key: %w", err)
	}
	if _, err := j.db.Exec(`INSERT INTO journal_meta (key, value) VALUES ('sender_key', ?)`, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("store sender key: %w", err)
	}
	return key, nil
}

// digest returns the keyed hash of s, or s itself when hashing is off.
func (j *Journal) digest(s string) string {
	if j.hashKey == nil || s == "" {
		return s
	}
	h, err := blake2b.New256(j.hashKey)
	if err != nil {
		// Only possible with a key longer than 64 bytes.
		return ""
	}
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Observe stores rec. Write failures are logged, never returned, so the
// journal cannot affect dispatch.
func (j *Journal) Observe(rec dispatch.Record) {
	var errText string
	if rec.Err != nil {
		errText = rec.Err.Error()
	}
	started := rec.Started
	if started.IsZero() {
		started = time.Now()
	}
	_, err := j.db.Exec(`INSERT INTO dispatch_log
		(run_id, channel, chat_id, kind, sender_id, sender_name, command, outcome, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Channel, j.digest(rec.ChatID), rec.Kind.String(),
		j.digest(rec.Author.ID), j.digest(rec.Author.Name),
		rec.Command, string(rec.Outcome), rec.Duration.Milliseconds(), errText,
		started.UTC().Format(timeFormat))
	if err != nil {
		j.logger.Warn("failed to journal dispatch", "run_id", rec.RunID, "error", err)
	}
}

// Recent returns up to n rows, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx, `SELECT id, run_id, channel, chat_id, kind, sender_id,
		sender_name, command, outcome, duration_ms, error, created_at
		FROM dispatch_log ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			outcome   string
			ms        int64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Channel, &e.ChatID, &e.Kind, &e.SenderID,
			&e.SenderName, &e.Command, &outcome, &ms, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.Outcome = dispatch.Outcome(outcome)
		e.Duration = time.Duration(ms) * time.Millisecond
		e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored rows.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatch_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

// Prune deletes rows created before cutoff and returns how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM dispatch_log WHERE created_at < ?`,
		cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

var _ dispatch.Observer = (*Journal)(nil)
