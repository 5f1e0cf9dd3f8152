package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"chatdeck/internal/logging"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Session owns one logical backend conversation: its line log, usage
// accumulator, permission gate and execution status.
//
// Every mutation is serialized through the session mutex, so an incoming
// assistant_text append from the bridge can never interleave with a
// truncation triggered by an edit. Operations on different sessions run
// fully in parallel; there is no global lock.
type Session struct {
	ID            string
	WorkspacePath string
	CreatedAt     time.Time

	mu            sync.Mutex
	log           *LineLog
	gate          PermissionGate
	usage         UsageAccumulator
	status        Status
	title         string
	updatedAt     time.Time
	isChatSession bool
	alwaysAllow   map[string]bool

	commander Commander
	logger    *logging.Logger
}

// NewSession creates an idle session. commander must not be nil; restored
// sessions without a live backend pass NopCommander.
func NewSession(id string, workspacePath string, commander Commander, logger *logging.Logger) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            id,
		WorkspacePath: workspacePath,
		CreatedAt:     now,
		log:           NewLineLog(),
		status:        StatusIdle,
		updatedAt:     now,
		alwaysAllow:   make(map[string]bool),
		commander:     commander,
		logger:        logger,
	}
}

// RestoreSession rebuilds a session from persisted lines. The restored
// session is idle; the id counter resumes from lastID (or the highest
// persisted line id) so pre-save ids are never reissued.
func RestoreSession(id string, workspacePath string, title string, lines []Line, lastID int64, commander Commander, logger *logging.Logger) (*Session, error) {
	log, err := RestoreLineLog(lines, lastID)
	if err != nil {
		return nil, err
	}
	sess := NewSession(id, workspacePath, commander, logger)
	sess.log = log
	sess.title = title
	sess.isChatSession = log.Len() > 0
	return sess, nil
}

// Submit opens a new turn: appends a user_input line, transitions to
// running and issues the start/continue command carrying the full prompt
// plus attachments. Legal from idle, completed and failed.
func (s *Session) Submit(promptText string, attachments []Attachment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning || s.status == StatusPaused {
		return 0, fmt.Errorf("submit: %w", ErrAlreadyRunning)
	}

	id := s.log.Append(LineUserInput, promptText, nil)
	s.setStatusLocked(StatusRunning)
	if s.title == "" {
		s.title = deriveSessionTitle(promptText)
	}

	var err error
	if s.isChatSession {
		err = s.commander.Continue(s.ID, promptText)
	} else {
		s.isChatSession = true
		err = s.commander.Start(s.ID, promptText, attachments)
	}
	if err != nil {
		s.recordBackendFailureLocked("submit", err)
	}
	return id, nil
}

// SendFollowUp is Submit for a conversation that already exists; it never
// resets the line log and always issues a continue command.
func (s *Session) SendFollowUp(promptText string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning || s.status == StatusPaused {
		return 0, fmt.Errorf("follow-up: %w", ErrAlreadyRunning)
	}

	id := s.log.Append(LineUserInput, promptText, nil)
	s.setStatusLocked(StatusRunning)
	s.isChatSession = true
	if err := s.commander.Continue(s.ID, promptText); err != nil {
		s.recordBackendFailureLocked("follow-up", err)
	}
	return id, nil
}

// EditAndResend rewrites history at a user line: the original line and
// every line after it are discarded, a fresh user_input line with the new
// content is appended, and the prompt is resubmitted as a new turn. The
// edited turn and everything after it are gone from visible history; the
// replacement line gets a freshly assigned id.
func (s *Session) EditAndResend(lineID int64, newContent string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning || s.status == StatusPaused {
		return 0, fmt.Errorf("edit line %d: %w", lineID, ErrInvalidState)
	}
	if err := s.requireUserLineLocked(lineID); err != nil {
		return 0, fmt.Errorf("edit line %d: %w", lineID, err)
	}

	// Validation passed; the truncate+append pair below cannot fail, so the
	// operation either applies fully or not at all.
	s.truncateFromLocked(lineID)
	id := s.log.Append(LineUserInput, newContent, nil)
	s.setStatusLocked(StatusRunning)
	if err := s.commander.Continue(s.ID, newContent); err != nil {
		s.recordBackendFailureLocked("edit", err)
	}
	return id, nil
}

// RegenerateResponse discards a turn's response and resubmits the same
// prompt. The user_input line is kept in place; no duplicate is appended.
func (s *Session) RegenerateResponse(userLineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning || s.status == StatusPaused {
		return fmt.Errorf("regenerate line %d: %w", userLineID, ErrInvalidState)
	}
	if err := s.requireUserLineLocked(userLineID); err != nil {
		return fmt.Errorf("regenerate line %d: %w", userLineID, err)
	}

	turns := DeriveTurns(s.log.Snapshot())
	turn, ok := TurnForLine(turns, userLineID)
	if !ok || turn.UserLineID != userLineID {
		return fmt.Errorf("regenerate line %d: %w", userLineID, ErrNotFound)
	}
	if len(turn.Lines) < 2 {
		// Only the user line itself; nothing to regenerate.
		return fmt.Errorf("regenerate line %d: turn has no response: %w", userLineID, ErrInvalidState)
	}

	prompt := turn.Lines[0].Content
	if err := s.log.TruncateAfter(userLineID); err != nil {
		return fmt.Errorf("regenerate line %d: %w", userLineID, err)
	}
	s.setStatusLocked(StatusRunning)
	if err := s.commander.Continue(s.ID, prompt); err != nil {
		s.recordBackendFailureLocked("regenerate", err)
	}
	return nil
}

// RollbackToTurn makes the turn opened by userLineID the last turn: every
// line after that turn's span is discarded. Non-generative; status and the
// backend are untouched. Rolling back to the turn that is already last
// removes nothing.
func (s *Session) RollbackToTurn(userLineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning || s.status == StatusPaused {
		return fmt.Errorf("rollback to line %d: %w", userLineID, ErrInvalidState)
	}
	if err := s.requireUserLineLocked(userLineID); err != nil {
		return fmt.Errorf("rollback to line %d: %w", userLineID, err)
	}

	turns := DeriveTurns(s.log.Snapshot())
	turn, ok := TurnForLine(turns, userLineID)
	if !ok || turn.UserLineID != userLineID {
		return fmt.Errorf("rollback to line %d: %w", userLineID, ErrNotFound)
	}
	if turn.Open() {
		return nil
	}
	s.truncateFromLocked(turn.EndLineID)
	return nil
}

// Pause suspends a running turn.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return fmt.Errorf("pause: %w", ErrInvalidState)
	}
	s.setStatusLocked(StatusPaused)
	return nil
}

// Resume restarts a paused turn.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPaused {
		return fmt.Errorf("resume: %w", ErrInvalidState)
	}
	s.setStatusLocked(StatusRunning)
	return nil
}

// Cancel aborts the in-flight turn. Best-effort: events already in flight
// when the cancel is issued may still land before the backend honors the
// stop, and readers must treat them as valid history. Pending permission
// requests are answered deny so the backend is never left blocked on
// approvals for abandoned work.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning && s.status != StatusPaused {
		return fmt.Errorf("cancel: %w", ErrInvalidState)
	}
	for _, req := range s.gate.Drain() {
		if err := s.commander.RespondPermission(s.ID, req.RequestID, PermissionDeny); err != nil {
			s.logger.Error("cancel: deny pending permission", map[string]interface{}{
				"session_id": s.ID, "request_id": req.RequestID, "error": err.Error(),
			})
		}
	}
	s.setStatusLocked(StatusIdle)
	if err := s.commander.Cancel(s.ID); err != nil {
		s.logger.Error("cancel: backend abort", map[string]interface{}{
			"session_id": s.ID, "error": err.Error(),
		})
	}
	return nil
}

// Reset clears the conversation for a fresh start: empties the log without
// rewinding the id counter, zeroes usage totals, denies anything still in
// the gate and returns the session to idle.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning || s.status == StatusPaused {
		return fmt.Errorf("reset: %w", ErrInvalidState)
	}
	for _, req := range s.gate.Drain() {
		_ = s.commander.RespondPermission(s.ID, req.RequestID, PermissionDeny)
	}
	_ = s.log.TruncateAfter(0)
	s.usage.Reset()
	s.isChatSession = false
	s.setStatusLocked(StatusIdle)
	return nil
}

// RespondPermission answers the current permission request. Answers for a
// request that is no longer current fail with ErrStaleRequest. An
// allow_always answer is remembered per tool: later requests for the same
// tool are answered allow without surfacing.
func (s *Session) RespondPermission(requestID string, response PermissionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved, err := s.gate.Resolve(requestID)
	if err != nil {
		return err
	}
	if response == PermissionAllowAlways {
		s.alwaysAllow[resolved.ToolName] = true
	}
	if err := s.commander.RespondPermission(s.ID, requestID, response); err != nil {
		s.recordBackendFailureLocked("permission response", err)
	}
	return nil
}

// HandleEvent ingests one backend event. Running is the only state in which
// events are expected; anything arriving while idle, completed or failed is
// logged and dropped. This covers the post-cancel race: the cancel already
// drove the session idle, so stragglers for the cancelled turn are shed
// here.
func (s *Session) HandleEvent(ev BackendEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning && s.status != StatusPaused {
		s.logger.Info("dropping event for inactive session", map[string]interface{}{
			"session_id": s.ID, "kind": string(ev.Kind), "status": string(s.status),
		})
		return
	}

	switch ev.Kind {
	case EventTextDelta:
		s.log.Append(LineAssistantText, ev.Text, ev.Usage)
	case EventToolCall:
		s.log.Append(LineToolCall, ev.Text, nil)
	case EventToolResult:
		s.log.Append(LineToolResult, ev.Text, nil)
	case EventPermissionRequest:
		if ev.Permission == nil {
			s.logger.Error("permission_request event without request", map[string]interface{}{
				"session_id": s.ID,
			})
			return
		}
		if s.alwaysAllow[ev.Permission.ToolName] {
			if err := s.commander.RespondPermission(s.ID, ev.Permission.RequestID, PermissionAllow); err != nil {
				s.recordBackendFailureLocked("auto-allow", err)
			}
			return
		}
		s.gate.Enqueue(*ev.Permission)
	case EventUsage:
		if ev.Usage != nil {
			s.usage.RecordTurn(*ev.Usage)
		}
	case EventStatusChanged:
		switch ev.Status {
		case StatusRunning, StatusPaused, StatusCompleted, StatusFailed:
			s.setStatusLocked(ev.Status)
		default:
			s.logger.Error("ignoring bad status from backend", map[string]interface{}{
				"session_id": s.ID, "status": string(ev.Status),
			})
		}
	case EventError:
		s.log.Append(LineError, ev.Text, nil)
		s.setStatusLocked(StatusFailed)
	default:
		s.logger.Error("unknown backend event kind", map[string]interface{}{
			"session_id": s.ID, "kind": string(ev.Kind),
		})
		return
	}
	s.updatedAt = time.Now().UTC()
}

// Lines returns a snapshot of the session's history.
func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Snapshot()
}

// Turns derives the turn structure from a snapshot.
func (s *Session) Turns() []Turn {
	return DeriveTurns(s.Lines())
}

// Status returns the current execution status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// UsageTotals returns the running per-session token sums.
func (s *Session) UsageTotals() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage.Totals()
}

// LatestUsage returns the most recent per-turn usage snapshot.
func (s *Session) LatestUsage() (Usage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage.Latest()
}

// PermissionQueue returns the current request followed by everything
// waiting behind it.
func (s *Session) PermissionQueue() []PermissionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Pending()
}

// CurrentPermission returns the request being shown, if any.
func (s *Session) CurrentPermission() (PermissionRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Current()
}

// PermissionQueueSize returns the number of requests waiting behind the
// current one.
func (s *Session) PermissionQueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.QueueSize()
}

// Title returns the session title, derived from the first prompt.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// UpdatedAt returns the time of the last mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// LastLineID returns the highest id ever assigned in this session.
func (s *Session) LastLineID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.LastID()
}

func (s *Session) requireUserLineLocked(lineID int64) error {
	line, ok := s.log.Line(lineID)
	if !ok || !line.IsUserInput() {
		return ErrNotFound
	}
	return nil
}

// truncateFromLocked discards every line with id >= lineID. Every id in
// [1, lastID] was assigned at some point, so TruncateAfter(lineID-1) cannot
// fail once lineID itself is known to exist.
func (s *Session) truncateFromLocked(lineID int64) {
	if err := s.log.TruncateAfter(lineID - 1); err != nil {
		panic(fmt.Sprintf("engine: truncate from %d after validation: %v", lineID, err))
	}
}

func (s *Session) setStatusLocked(status Status) {
	s.status = status
	s.updatedAt = time.Now().UTC()
}

func (s *Session) recordBackendFailureLocked(op string, err error) {
	s.logger.Error("backend command failed", map[string]interface{}{
		"session_id": s.ID, "op": op, "error": err.Error(),
	})
	s.log.Append(LineError, fmt.Sprintf("backend %s failed: %v", op, err), nil)
	s.setStatusLocked(StatusFailed)
}

func deriveSessionTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		content = line
		break
	}
	content = strings.Join(strings.Fields(content), " ")
	const max = 60
	if len(content) > max {
		content = strings.TrimSpace(content[:max-3]) + "..."
	}
	return content
}
