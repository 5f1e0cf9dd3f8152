package engine

import (
	"errors"
	"sync"
	"testing"

	"chatdeck/internal/logging"
)

func newTestRegistry() (*Registry, *fakeCommander) {
	commander := &fakeCommander{}
	return NewRegistry(commander, logging.Discard()), commander
}

func TestRegistryCreateAndForeground(t *testing.T) {
	reg, _ := newTestRegistry()

	if _, ok := reg.Foreground(); ok {
		t.Fatal("empty registry should have no foreground")
	}

	first := reg.CreateSession("/work/a")
	second := reg.CreateSession("/work/b")

	// The first session becomes foreground automatically.
	if reg.ForegroundID() != first.ID {
		t.Fatalf("foreground=%q want %q", reg.ForegroundID(), first.ID)
	}

	if err := reg.SwitchForeground(second.ID); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if reg.ForegroundID() != second.ID {
		t.Fatalf("foreground=%q want %q", reg.ForegroundID(), second.ID)
	}
	// Switching to the current foreground is a no-op.
	if err := reg.SwitchForeground(second.ID); err != nil {
		t.Fatalf("switch to self: %v", err)
	}
	if err := reg.SwitchForeground("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("switch to unknown err=%v want ErrNotFound", err)
	}
}

func TestRegistryBackgroundIsolation(t *testing.T) {
	reg, _ := newTestRegistry()
	fg := reg.CreateSession("/work/a")
	bg := reg.CreateSession("/work/b")

	if _, err := fg.Submit("foreground task", nil); err != nil {
		t.Fatalf("submit fg: %v", err)
	}
	if _, err := bg.Submit("background task", nil); err != nil {
		t.Fatalf("submit bg: %v", err)
	}

	fgBefore, _ := reg.Lines(fg.ID)
	fgStatusBefore, _ := reg.StatusOf(fg.ID)

	// An event for the backgrounded session lands in its log only.
	reg.Deliver(bg.ID, BackendEvent{Kind: EventTextDelta, Text: "bg progress"})

	fgLines, _ := reg.Lines(fg.ID)
	if len(fgLines) != len(fgBefore) {
		t.Fatal("background event leaked into foreground session")
	}
	if status, _ := reg.StatusOf(fg.ID); status != fgStatusBefore {
		t.Fatalf("foreground status changed: %s -> %s", fgStatusBefore, status)
	}
	bgLines, _ := reg.Lines(bg.ID)
	if len(bgLines) != 2 || bgLines[1].Content != "bg progress" {
		t.Fatalf("background lines=%+v", bgLines)
	}

	// Switching foreground alters neither session's content.
	if err := reg.SwitchForeground(bg.ID); err != nil {
		t.Fatalf("switch: %v", err)
	}
	fgAfter, _ := reg.Lines(fg.ID)
	bgAfter, _ := reg.Lines(bg.ID)
	if len(fgAfter) != len(fgLines) || len(bgAfter) != len(bgLines) {
		t.Fatal("switching foreground changed line content")
	}
}

func TestRegistryDeliverUnknownSession(t *testing.T) {
	reg, _ := newTestRegistry()
	// Must not panic; the event is logged and dropped.
	reg.Deliver("ghost", BackendEvent{Kind: EventTextDelta, Text: "hello"})
}

func TestRegistryRemoveBackground(t *testing.T) {
	reg, commander := newTestRegistry()
	fg := reg.CreateSession("/work/a")
	bg := reg.CreateSession("/work/b")

	if err := reg.RemoveBackground(fg.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("removing foreground err=%v want ErrInvalidState", err)
	}
	if err := reg.RemoveBackground("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removing unknown err=%v want ErrNotFound", err)
	}

	// A running background session is cancelled before being dropped.
	if _, err := bg.Submit("task", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := reg.RemoveBackground(bg.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := reg.Session(bg.ID); ok {
		t.Fatal("removed session still present")
	}
	var cancelled bool
	for _, call := range commander.recorded() {
		if call.op == "cancel" {
			cancelled = true
		}
	}
	if !cancelled {
		t.Fatal("running background session must be cancelled on removal")
	}
}

func TestRegistryReadSurfaceUnknownSession(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Lines("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lines err=%v", err)
	}
	if _, err := reg.Turns("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Turns err=%v", err)
	}
	if _, err := reg.StatusOf("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("StatusOf err=%v", err)
	}
	if _, err := reg.UsageOf("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UsageOf err=%v", err)
	}
	if _, err := reg.PermissionQueueOf("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("PermissionQueueOf err=%v", err)
	}
}

func TestRegistryNotify(t *testing.T) {
	reg, _ := newTestRegistry()
	sess := reg.CreateSession("/work/a")
	if _, err := sess.Submit("task", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var mu sync.Mutex
	var notified []string
	reg.SetNotify(func(sessionID string) {
		mu.Lock()
		notified = append(notified, sessionID)
		mu.Unlock()
	})

	reg.Deliver(sess.ID, BackendEvent{Kind: EventTextDelta, Text: "chunk"})
	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 || notified[0] != sess.ID {
		t.Fatalf("notified=%v", notified)
	}
}

func TestRegistrySessionsOrderedByCreation(t *testing.T) {
	reg, _ := newTestRegistry()
	a := reg.CreateSession("/work/a")
	b := reg.CreateSession("/work/b")
	c := reg.CreateSession("/work/c")

	sessions := reg.Sessions()
	if len(sessions) != 3 {
		t.Fatalf("sessions=%d want 3", len(sessions))
	}
	// Creation order must be stable even with equal timestamps.
	seen := map[string]bool{a.ID: true, b.ID: true, c.ID: true}
	for _, sess := range sessions {
		if !seen[sess.ID] {
			t.Fatalf("unexpected session %q", sess.ID)
		}
	}
}

// Cross-session operations run fully in parallel; there is no global lock.
func TestRegistryParallelSessions(t *testing.T) {
	reg, _ := newTestRegistry()
	a := reg.CreateSession("/work/a")
	b := reg.CreateSession("/work/b")
	if _, err := a.Submit("a", nil); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if _, err := b.Submit("b", nil); err != nil {
		t.Fatalf("submit b: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Deliver(a.ID, BackendEvent{Kind: EventTextDelta, Text: "a chunk"})
		}()
		go func() {
			defer wg.Done()
			reg.Deliver(b.ID, BackendEvent{Kind: EventTextDelta, Text: "b chunk"})
		}()
	}
	wg.Wait()

	aLines, _ := reg.Lines(a.ID)
	bLines, _ := reg.Lines(b.ID)
	if len(aLines) != 101 || len(bLines) != 101 {
		t.Fatalf("lines a=%d b=%d want 101 each", len(aLines), len(bLines))
	}
}
