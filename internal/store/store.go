package store

import (
	"time"

	"chatdeck/internal/engine"
)

// SessionRecord is the persisted shape of a session. Lines are stored
// separately; reload must reconstruct a line log faithful enough that turn
// derivation produces the same turns as before the save.
type SessionRecord struct {
	ID            string    `json:"id"`
	WorkspacePath string    `json:"workspace_path"`
	Title         string    `json:"title,omitempty"`
	LastLineID    int64     `json:"last_line_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionSummary is the list-view shape.
type SessionSummary struct {
	Record       SessionRecord `json:"record"`
	LineCount    int           `json:"line_count"`
	LastActivity time.Time     `json:"last_activity"`
}

// Store persists sessions, their line history and per-workspace prompt
// history.
//
// Implementations must preserve line ordering by id and must never rewrite
// ids: the engine's id counter is restored from LastLineID so ids are never
// reissued across a save/load cycle.
type Store interface {
	SaveSession(record SessionRecord, lines []engine.Line) error
	LoadSession(sessionID string) (SessionRecord, []engine.Line, error)
	ListSessions(limit int) ([]SessionSummary, error)
	DeleteSession(sessionID string) error

	SavePromptHistory(workspacePath string, entries []string) error
	LoadPromptHistory(workspacePath string) ([]string, error)

	Close() error
}

// RecordOf captures a live session's persistable fields.
func RecordOf(sess *engine.Session) SessionRecord {
	return SessionRecord{
		ID:            sess.ID,
		WorkspacePath: sess.WorkspacePath,
		Title:         sess.Title(),
		LastLineID:    sess.LastLineID(),
		CreatedAt:     sess.CreatedAt,
		UpdatedAt:     sess.UpdatedAt(),
	}
}
