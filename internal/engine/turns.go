package engine

import "fmt"

// Turn is a derived grouping: the span of lines from one user input up to
// (not including) the next. Turns are never stored; they are recomputed
// from a snapshot on read.
type Turn struct {
	// Index is the 0-based position among turns.
	Index int `json:"index"`
	// UserLineID is the id of the user_input line that opens the turn.
	UserLineID int64 `json:"user_line_id"`
	// EndLineID is the id of the next turn's user line, making the span the
	// half-open range [UserLineID, EndLineID). Zero for the last turn, whose
	// span is open-ended.
	EndLineID int64 `json:"end_line_id,omitempty"`
	// Lines are the lines belonging to the turn, in id order.
	Lines []Line `json:"lines"`
}

// Open reports whether the turn's span is open-ended (it is the last turn).
func (t Turn) Open() bool {
	return t.EndLineID == 0
}

// Contains reports whether lineID falls inside the turn's span. A line whose
// id equals the turn's UserLineID belongs to that turn.
func (t Turn) Contains(lineID int64) bool {
	if lineID < t.UserLineID {
		return false
	}
	return t.Open() || lineID < t.EndLineID
}

// DeriveTurns computes the turn structure of a line sequence. It is a pure
// function over a snapshot: no state, no side effects, safe from any
// goroutine. A sequence with zero user_input lines yields zero turns.
//
// Out-of-order or duplicate ids violate the line log invariant and are a
// programming error, hence the panic rather than an error return.
func DeriveTurns(lines []Line) []Turn {
	var turns []Turn
	var lastID int64
	for i, line := range lines {
		if i > 0 && line.ID <= lastID {
			panic(fmt.Sprintf("engine: line ids out of order: %d after %d", line.ID, lastID))
		}
		lastID = line.ID
		if line.IsUserInput() {
			if n := len(turns); n > 0 {
				turns[n-1].EndLineID = line.ID
			}
			turns = append(turns, Turn{Index: len(turns), UserLineID: line.ID})
		}
		if n := len(turns); n > 0 {
			turns[n-1].Lines = append(turns[n-1].Lines, line)
		}
	}
	return turns
}

// TurnForLine returns the turn whose span contains lineID.
func TurnForLine(turns []Turn, lineID int64) (Turn, bool) {
	for _, turn := range turns {
		if turn.Contains(lineID) {
			return turn, true
		}
	}
	return Turn{}, false
}
