package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"chatdeck/internal/engine"
)

// SQLiteStore persists sessions in a single database file under the data
// root.
type SQLiteStore struct {
	Root   string
	dbPath string

	mu   sync.Mutex
	db   *sql.DB
	once sync.Once
	err  error
}

// DefaultDataRoot resolves the storage directory, preferring the XDG data
// dir and falling back to ~/.local/share.
func DefaultDataRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "chatdeck")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "chatdeck")
	}
	return filepath.Join(os.TempDir(), "chatdeck")
}

func NewSQLiteStore(root string) (*SQLiteStore, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultDataRoot()
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	st := &SQLiteStore{
		Root:   root,
		dbPath: filepath.Join(root, "chatdeck.db"),
	}
	// Initialize eagerly so callers fail fast.
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) init() error {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			s.err = err
			return
		}
		// Keep sqlite responsive under contention.
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		_, _ = db.Exec("PRAGMA journal_mode = WAL;")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

		schema := []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				workspace_path TEXT NOT NULL,
				title TEXT,
				last_line_id INTEGER NOT NULL,
				created_at_ns INTEGER NOT NULL,
				updated_at_ns INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_workspace_updated ON sessions(workspace_path, updated_at_ns);`,
			`CREATE TABLE IF NOT EXISTS lines (
				session_id TEXT NOT NULL,
				id INTEGER NOT NULL,
				kind TEXT NOT NULL,
				content TEXT NOT NULL,
				usage_json TEXT,
				created_at_ns INTEGER NOT NULL,
				PRIMARY KEY (session_id, id)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_lines_session ON lines(session_id, id);`,
			`CREATE TABLE IF NOT EXISTS prompt_history (
				workspace_path TEXT PRIMARY KEY,
				entries_json TEXT NOT NULL,
				updated_at_ns INTEGER NOT NULL
			);`,
		}
		for _, stmt := range schema {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				s.err = err
				return
			}
		}

		s.db = db
	})
	return s.err
}

func (s *SQLiteStore) dbConn() (*sql.DB, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, errors.New("sqlite store unavailable")
	}
	return db, nil
}

// SaveSession writes the record and replaces the full line history in one
// transaction. Sessions stay small enough that rewriting the lines is
// simpler and safer than diffing against truncations.
func (s *SQLiteStore) SaveSession(record SessionRecord, lines []engine.Line) error {
	if strings.TrimSpace(record.ID) == "" {
		return errors.New("missing session id")
	}
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO sessions(id, workspace_path, title, last_line_id, created_at_ns, updated_at_ns)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			workspace_path=excluded.workspace_path,
			title=excluded.title,
			last_line_id=excluded.last_line_id,
			updated_at_ns=excluded.updated_at_ns`,
		record.ID, record.WorkspacePath, record.Title, record.LastLineID,
		record.CreatedAt.UnixNano(), record.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM lines WHERE session_id = ?`, record.ID); err != nil {
		return err
	}
	for _, line := range lines {
		var usageJSON interface{}
		if line.Usage != nil {
			data, err := json.Marshal(line.Usage)
			if err != nil {
				return err
			}
			usageJSON = string(data)
		}
		_, err := tx.Exec(
			`INSERT INTO lines(session_id, id, kind, content, usage_json, created_at_ns) VALUES(?, ?, ?, ?, ?, ?)`,
			record.ID, line.ID, string(line.Kind), line.Content, usageJSON, line.CreatedAt.UnixNano(),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadSession(sessionID string) (SessionRecord, []engine.Line, error) {
	db, err := s.dbConn()
	if err != nil {
		return SessionRecord{}, nil, err
	}

	var record SessionRecord
	var createdNs, updatedNs int64
	var title sql.NullString
	err = db.QueryRow(
		`SELECT id, workspace_path, title, last_line_id, created_at_ns, updated_at_ns FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&record.ID, &record.WorkspacePath, &title, &record.LastLineID, &createdNs, &updatedNs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, nil, fmt.Errorf("session %s: %w", sessionID, engine.ErrNotFound)
		}
		return SessionRecord{}, nil, err
	}
	record.Title = title.String
	record.CreatedAt = time.Unix(0, createdNs).UTC()
	record.UpdatedAt = time.Unix(0, updatedNs).UTC()

	rows, err := db.Query(
		`SELECT id, kind, content, usage_json, created_at_ns FROM lines WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return SessionRecord{}, nil, err
	}
	defer rows.Close()

	var lines []engine.Line
	for rows.Next() {
		var line engine.Line
		var kind string
		var usageJSON sql.NullString
		var createdNs int64
		if err := rows.Scan(&line.ID, &kind, &line.Content, &usageJSON, &createdNs); err != nil {
			return SessionRecord{}, nil, err
		}
		line.Kind = engine.LineKind(kind)
		line.CreatedAt = time.Unix(0, createdNs).UTC()
		if usageJSON.Valid && usageJSON.String != "" {
			var usage engine.Usage
			if err := json.Unmarshal([]byte(usageJSON.String), &usage); err != nil {
				return SessionRecord{}, nil, fmt.Errorf("decode usage for line %d: %w", line.ID, err)
			}
			line.Usage = &usage
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return SessionRecord{}, nil, err
	}
	return record, lines, nil
}

func (s *SQLiteStore) ListSessions(limit int) ([]SessionSummary, error) {
	db, err := s.dbConn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT s.id, s.workspace_path, s.title, s.last_line_id, s.created_at_ns, s.updated_at_ns,
			(SELECT COUNT(*) FROM lines l WHERE l.session_id = s.id)
		 FROM sessions s
		 ORDER BY s.updated_at_ns DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var createdNs, updatedNs int64
		var title sql.NullString
		if err := rows.Scan(
			&sum.Record.ID, &sum.Record.WorkspacePath, &title, &sum.Record.LastLineID,
			&createdNs, &updatedNs, &sum.LineCount,
		); err != nil {
			return nil, err
		}
		sum.Record.Title = title.String
		sum.Record.CreatedAt = time.Unix(0, createdNs).UTC()
		sum.Record.UpdatedAt = time.Unix(0, updatedNs).UTC()
		sum.LastActivity = sum.Record.UpdatedAt
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSession(sessionID string) error {
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM lines WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SavePromptHistory(workspacePath string, entries []string) error {
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO prompt_history(workspace_path, entries_json, updated_at_ns)
		 VALUES(?, ?, ?)
		 ON CONFLICT(workspace_path) DO UPDATE SET entries_json=excluded.entries_json, updated_at_ns=excluded.updated_at_ns`,
		workspacePath, string(data), time.Now().UnixNano(),
	)
	return err
}

func (s *SQLiteStore) LoadPromptHistory(workspacePath string) ([]string, error) {
	db, err := s.dbConn()
	if err != nil {
		return nil, err
	}
	var data string
	err = db.QueryRow(`SELECT entries_json FROM prompt_history WHERE workspace_path = ?`, workspacePath).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var entries []string
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
