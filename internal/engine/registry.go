package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"chatdeck/internal/logging"
)

// Registry owns all sessions: one foreground driving the UI, any number
// backgrounded. Backgrounded sessions keep receiving events and keep
// running; they are just not pushed to the visible surface. The registry
// lock guards only the session map and the foreground id; per-session work
// happens under each session's own lock, so different sessions progress in
// parallel.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	foregroundID string

	commander Commander
	logger    *logging.Logger
	notify    func(sessionID string)
}

func NewRegistry(commander Commander, logger *logging.Logger) *Registry {
	if commander == nil {
		commander = NopCommander{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		commander: commander,
		logger:    logger,
	}
}

// SetNotify installs a callback invoked after an event lands in a session.
// The TUI uses it to schedule a re-read; the callback must not call back
// into the registry synchronously with mutations.
func (r *Registry) SetNotify(fn func(sessionID string)) {
	r.mu.Lock()
	r.notify = fn
	r.mu.Unlock()
}

// CreateSession creates a new idle session and makes it foreground if no
// session is foreground yet.
func (r *Registry) CreateSession(workspacePath string) *Session {
	sess := NewSession(uuid.NewString(), workspacePath, r.commander, r.logger)
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	if r.foregroundID == "" {
		r.foregroundID = sess.ID
	}
	r.mu.Unlock()
	return sess
}

// Adopt registers a session restored from storage.
func (r *Registry) Adopt(sess *Session) {
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	if r.foregroundID == "" {
		r.foregroundID = sess.ID
	}
	r.mu.Unlock()
}

// Restore rebuilds a persisted session with the registry's commander and
// adopts it.
func (r *Registry) Restore(id string, workspacePath string, title string, lines []Line, lastID int64) (*Session, error) {
	sess, err := RestoreSession(id, workspacePath, title, lines, lastID, r.commander, r.logger)
	if err != nil {
		return nil, err
	}
	r.Adopt(sess)
	return sess, nil
}

// Deliver routes one backend event to its session. Events for unknown
// session ids are logged and dropped; backgrounded sessions accept events
// exactly like the foreground one.
func (r *Registry) Deliver(sessionID string, ev BackendEvent) {
	sess, ok := r.lookup(sessionID)
	if !ok {
		r.logger.Warn("dropping event for unknown session", map[string]interface{}{
			"session_id": sessionID, "kind": string(ev.Kind),
		})
		return
	}
	sess.HandleEvent(ev)

	r.mu.RLock()
	notify := r.notify
	r.mu.RUnlock()
	if notify != nil {
		notify(sessionID)
	}
}

// SwitchForeground makes sessionID the visible session. The old foreground
// session is backgrounded: its line log keeps growing and its status keeps
// evolving. No-op when sessionID is already foreground.
func (r *Registry) SwitchForeground(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return fmt.Errorf("switch foreground to %q: %w", sessionID, ErrNotFound)
	}
	r.foregroundID = sessionID
	return nil
}

// RemoveBackground detaches and discards a backgrounded session, cancelling
// it first if a turn is in flight. The foreground session cannot be
// removed; switch away first.
func (r *Registry) RemoveBackground(sessionID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("remove session %q: %w", sessionID, ErrNotFound)
	}
	if sessionID == r.foregroundID {
		r.mu.Unlock()
		return fmt.Errorf("remove session %q: session is foreground: %w", sessionID, ErrInvalidState)
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	switch sess.Status() {
	case StatusRunning, StatusPaused:
		if err := sess.Cancel(); err != nil {
			r.logger.Error("cancel removed session", map[string]interface{}{
				"session_id": sessionID, "error": err.Error(),
			})
		}
	}
	return nil
}

// Foreground returns the visible session, if any.
func (r *Registry) Foreground() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[r.foregroundID]
	return sess, ok
}

// ForegroundID returns the visible session's id, or "".
func (r *Registry) ForegroundID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.foregroundID
}

// Session returns the session with the given id.
func (r *Registry) Session(sessionID string) (*Session, bool) {
	return r.lookup(sessionID)
}

// Sessions returns every session ordered by creation time.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Lines is the read surface for UI collaborators: a snapshot of one
// session's history.
func (r *Registry) Lines(sessionID string) ([]Line, error) {
	sess, ok := r.lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("lines for %q: %w", sessionID, ErrNotFound)
	}
	return sess.Lines(), nil
}

// Turns derives the turn structure of one session from a snapshot.
func (r *Registry) Turns(sessionID string) ([]Turn, error) {
	sess, ok := r.lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("turns for %q: %w", sessionID, ErrNotFound)
	}
	return sess.Turns(), nil
}

// StatusOf returns one session's execution status.
func (r *Registry) StatusOf(sessionID string) (Status, error) {
	sess, ok := r.lookup(sessionID)
	if !ok {
		return "", fmt.Errorf("status for %q: %w", sessionID, ErrNotFound)
	}
	return sess.Status(), nil
}

// UsageOf returns one session's running token totals.
func (r *Registry) UsageOf(sessionID string) (Usage, error) {
	sess, ok := r.lookup(sessionID)
	if !ok {
		return Usage{}, fmt.Errorf("usage for %q: %w", sessionID, ErrNotFound)
	}
	return sess.UsageTotals(), nil
}

// PermissionQueueOf returns one session's pending permission requests.
func (r *Registry) PermissionQueueOf(sessionID string) ([]PermissionRequest, error) {
	sess, ok := r.lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("permission queue for %q: %w", sessionID, ErrNotFound)
	}
	return sess.PermissionQueue(), nil
}

func (r *Registry) lookup(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	return sess, ok
}
