package engine

import "testing"

func linesFromKinds(kinds ...LineKind) []Line {
	lines := make([]Line, len(kinds))
	for i, kind := range kinds {
		lines[i] = Line{ID: int64(i + 1), Kind: kind}
	}
	return lines
}

func TestDeriveTurnsEmpty(t *testing.T) {
	if turns := DeriveTurns(nil); len(turns) != 0 {
		t.Fatalf("nil input: %d turns want 0", len(turns))
	}
	// Zero user_input lines means zero turns, whatever else is present.
	lines := linesFromKinds(LineAssistantText, LineToolCall, LineInfo)
	if turns := DeriveTurns(lines); len(turns) != 0 {
		t.Fatalf("no user input: %d turns want 0", len(turns))
	}
}

func TestDeriveTurnsGrouping(t *testing.T) {
	lines := linesFromKinds(
		LineUserInput,      // 1: turn 0
		LineAssistantText,  // 2
		LineToolCall,       // 3
		LineToolResult,     // 4
		LineUserInput,      // 5: turn 1
		LineAssistantText,  // 6
	)
	turns := DeriveTurns(lines)
	if len(turns) != 2 {
		t.Fatalf("turns=%d want 2", len(turns))
	}
	if turns[0].UserLineID != 1 || turns[0].EndLineID != 5 {
		t.Fatalf("turn 0 span [%d,%d) want [1,5)", turns[0].UserLineID, turns[0].EndLineID)
	}
	if len(turns[0].Lines) != 4 {
		t.Fatalf("turn 0 lines=%d want 4", len(turns[0].Lines))
	}
	if turns[1].UserLineID != 5 || !turns[1].Open() {
		t.Fatalf("turn 1 should be open-ended at 5, got [%d,%d)", turns[1].UserLineID, turns[1].EndLineID)
	}
	if turns[0].Index != 0 || turns[1].Index != 1 {
		t.Fatalf("turn indexes %d,%d want 0,1", turns[0].Index, turns[1].Index)
	}
}

func TestDeriveTurnsLeadingNonUserLinesBelongToNoTurn(t *testing.T) {
	lines := linesFromKinds(LineInfo, LineUserInput, LineAssistantText)
	turns := DeriveTurns(lines)
	if len(turns) != 1 {
		t.Fatalf("turns=%d want 1", len(turns))
	}
	if turns[0].UserLineID != 2 || len(turns[0].Lines) != 2 {
		t.Fatalf("turn 0 = %+v", turns[0])
	}
}

func TestDeriveTurnsPurity(t *testing.T) {
	lines := linesFromKinds(LineUserInput, LineAssistantText, LineUserInput)
	first := DeriveTurns(lines)
	second := DeriveTurns(lines)
	if len(first) != len(second) {
		t.Fatalf("derivation not stable: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].UserLineID != second[i].UserLineID || first[i].EndLineID != second[i].EndLineID {
			t.Fatalf("turn %d differs between derivations", i)
		}
	}
}

func TestDeriveTurnsPanicsOnOutOfOrderIDs(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-order ids")
		}
	}()
	DeriveTurns([]Line{
		{ID: 2, Kind: LineUserInput},
		{ID: 1, Kind: LineAssistantText},
	})
}

func TestTurnContainsBoundary(t *testing.T) {
	lines := linesFromKinds(LineUserInput, LineAssistantText, LineUserInput, LineAssistantText)
	turns := DeriveTurns(lines)

	tests := []struct {
		lineID   int64
		wantTurn int64 // expected UserLineID of the owning turn
		ok       bool
	}{
		{lineID: 1, wantTurn: 1, ok: true},
		{lineID: 2, wantTurn: 1, ok: true},
		// A line id equal to a turn's userLineId belongs to that turn.
		{lineID: 3, wantTurn: 3, ok: true},
		{lineID: 4, wantTurn: 3, ok: true},
		{lineID: 0, ok: false},
	}
	for _, tt := range tests {
		turn, ok := TurnForLine(turns, tt.lineID)
		if ok != tt.ok {
			t.Fatalf("TurnForLine(%d) ok=%v want %v", tt.lineID, ok, tt.ok)
		}
		if ok && turn.UserLineID != tt.wantTurn {
			t.Fatalf("TurnForLine(%d) turn=%d want %d", tt.lineID, turn.UserLineID, tt.wantTurn)
		}
	}
}
