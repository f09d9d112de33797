// Package journal keeps an append-only record of document saves in SQLite.
//
// It stores outcomes only (what was saved, at which version, after how many
// attempts), never entity content.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// DBFile is the database filename inside the data directory.
const DBFile = "journal.db"

// Outcome values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Entry is one recorded save.
type Entry struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	EntityID     string `json:"entity_id"`
	Action       string `json:"action"`
	Version      int    `json:"version,omitempty"`
	Attempts     int    `json:"attempts"`
	AutoResolved bool   `json:"auto_resolved,omitempty"`
	Outcome      string `json:"outcome"`
	Message      string `json:"message,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds journal configuration. MaxMessageLen counts runes; zero
// keeps messages whole.
type Config struct {
	DataDir       string
	MaxMessageLen int
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the SQLite-backed journal.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New opens (or creates) the journal database in cfg.DataDir.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(cfg.DataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS saves (
			id            TEXT    PRIMARY KEY,
			kind          TEXT    NOT NULL,
			entity_id     TEXT    NOT NULL,
			action        TEXT    NOT NULL,
			version       INTEGER NOT NULL DEFAULT 0,
			attempts      INTEGER NOT NULL DEFAULT 1,
			auto_resolved INTEGER NOT NULL DEFAULT 0,
			outcome       TEXT    NOT NULL,
			message       TEXT    NOT NULL DEFAULT '',
			created_at    TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_saves_entity  ON saves(kind, entity_id);
		CREATE INDEX IF NOT EXISTS idx_saves_created ON saves(created_at DESC);
	`)
	return err
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// Record appends e. ID and CreatedAt are assigned here; Outcome defaults
// to ok.
func (s *Store) Record(e Entry) (Entry, error) {
	if e.Kind == "" || e.EntityID == "" {
		return Entry{}, fmt.Errorf("journal: kind and entity id are required")
	}
	e.ID = uuid.NewString()
	e.CreatedAt = timeNow().UTC().Format(time.RFC3339Nano)
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}
	if e.Attempts <= 0 {
		e.Attempts = 1
	}
	if n := s.cfg.MaxMessageLen; n > 0 && utf8.RuneCountInString(e.Message) > n {
		e.Message = string([]rune(e.Message)[:n]) + "..."
	}

	_, err := s.db.Exec(`
		INSERT INTO saves (id, kind, entity_id, action, version, attempts, auto_resolved, outcome, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.EntityID, e.Action, e.Version, e.Attempts, boolToInt(e.AutoResolved),
		e.Outcome, e.Message, e.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: record: %w", err)
	}
	return e, nil
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Recent returns the newest entries first. Empty kind or entityID match
// everything.
func (s *Store) Recent(kind, entityID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, kind, entity_id, action, version, attempts, auto_resolved, outcome, message, created_at
		FROM saves
		WHERE 1=1
	`
	args := []any{}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if entityID != "" {
		query += " AND entity_id = ?"
		args = append(args, entityID)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			auto int
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.EntityID, &e.Action, &e.Version, &e.Attempts,
			&auto, &e.Outcome, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.AutoResolved = auto != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of recorded saves.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM saves").Scan(&n); err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
