package engine

import (
	"fmt"
	"time"
)

// LineLog holds one session's event history. It is not safe for concurrent
// use on its own; the owning Session serializes access.
//
// The id counter is monotonic even across truncation, so ids already shown
// to the user or the backend are never reissued with different content.
type LineLog struct {
	lines  []Line
	lastID int64
}

// NewLineLog returns an empty log.
func NewLineLog() *LineLog {
	return &LineLog{}
}

// RestoreLineLog rebuilds a log from persisted lines. Lines must already be
// in strictly increasing id order. The id counter resumes from lastID or
// from the highest persisted line id, whichever is greater; truncation can
// leave the counter past the last surviving line, and restoring must not
// rewind it.
func RestoreLineLog(lines []Line, lastID int64) (*LineLog, error) {
	log := &LineLog{lines: make([]Line, 0, len(lines))}
	for _, line := range lines {
		if line.ID <= log.lastID {
			return nil, fmt.Errorf("restore line log: id %d out of order after %d", line.ID, log.lastID)
		}
		log.lines = append(log.lines, line)
		log.lastID = line.ID
	}
	if lastID > log.lastID {
		log.lastID = lastID
	}
	return log, nil
}

// Append assigns the next id, appends the line and returns the id. Always
// legal; never fails.
func (l *LineLog) Append(kind LineKind, content string, usage *Usage) int64 {
	l.lastID++
	line := Line{
		ID:        l.lastID,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if usage != nil {
		u := *usage
		line.Usage = &u
	}
	l.lines = append(l.lines, line)
	return line.ID
}

// TruncateAfter removes every line with id strictly greater than lineID.
// No-op when lineID >= lastID. Returns ErrNotFound when lineID was never
// assigned, which means the caller passed a stale or foreign id.
func (l *LineLog) TruncateAfter(lineID int64) error {
	if lineID < 0 || lineID > l.lastID {
		return fmt.Errorf("truncate after line %d: %w", lineID, ErrNotFound)
	}
	cut := len(l.lines)
	for cut > 0 && l.lines[cut-1].ID > lineID {
		cut--
	}
	l.lines = l.lines[:cut]
	return nil
}

// Line returns the line with the given id.
func (l *LineLog) Line(lineID int64) (Line, bool) {
	for _, line := range l.lines {
		if line.ID == lineID {
			return line, true
		}
		if line.ID > lineID {
			break
		}
	}
	return Line{}, false
}

// Snapshot returns an immutable copy of the current line sequence. Callers
// can hand the copy to DeriveTurns or render from it without racing a later
// mutation.
func (l *LineLog) Snapshot() []Line {
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

// Len returns the number of lines currently in the log.
func (l *LineLog) Len() int {
	return len(l.lines)
}

// LastID returns the highest id ever assigned, including ids removed by
// truncation. Zero means nothing was ever appended.
func (l *LineLog) LastID() int64 {
	return l.lastID
}
