package engine

import (
	"errors"
	"testing"
)

func req(id string) PermissionRequest {
	return PermissionRequest{RequestID: id, ToolName: "exec", Arguments: `{"command":"ls"}`, Risk: RiskReadOnly}
}

func TestGateEnqueueOrdering(t *testing.T) {
	var gate PermissionGate

	if _, ok := gate.Current(); ok {
		t.Fatal("empty gate should have no current request")
	}

	gate.Enqueue(req("r1"))
	gate.Enqueue(req("r2"))
	gate.Enqueue(req("r3"))

	current, ok := gate.Current()
	if !ok || current.RequestID != "r1" {
		t.Fatalf("current=%+v ok=%v want r1", current, ok)
	}
	if gate.QueueSize() != 2 {
		t.Fatalf("queue size=%d want 2", gate.QueueSize())
	}
}

func TestGateRespondOutOfOrderIsStale(t *testing.T) {
	var gate PermissionGate
	gate.Enqueue(req("r1"))
	gate.Enqueue(req("r2"))

	// Answering r2 while r1 is current must fail and leave the gate intact.
	if _, err := gate.Resolve("r2"); !errors.Is(err, ErrStaleRequest) {
		t.Fatalf("resolve r2 before r1: err=%v want ErrStaleRequest", err)
	}
	if current, _ := gate.Current(); current.RequestID != "r1" {
		t.Fatalf("stale resolve disturbed the gate: current=%q", current.RequestID)
	}

	resolved, err := gate.Resolve("r1")
	if err != nil || resolved.RequestID != "r1" {
		t.Fatalf("resolve r1: %+v err=%v", resolved, err)
	}
	// After r1 resolves, r2 becomes current automatically.
	if current, _ := gate.Current(); current.RequestID != "r2" {
		t.Fatalf("after r1: current=%q want r2", current.RequestID)
	}
	if gate.QueueSize() != 0 {
		t.Fatalf("queue size=%d want 0", gate.QueueSize())
	}
}

func TestGateResolveLastEmptiesGate(t *testing.T) {
	var gate PermissionGate
	gate.Enqueue(req("r1"))
	if _, err := gate.Resolve("r1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := gate.Current(); ok {
		t.Fatal("gate should be empty after the only request resolves")
	}
	if _, err := gate.Resolve("r1"); !errors.Is(err, ErrStaleRequest) {
		t.Fatalf("double resolve: err=%v want ErrStaleRequest", err)
	}
}

func TestGateDrain(t *testing.T) {
	var gate PermissionGate
	gate.Enqueue(req("r1"))
	gate.Enqueue(req("r2"))
	gate.Enqueue(req("r3"))

	drained := gate.Drain()
	if len(drained) != 3 {
		t.Fatalf("drained %d want 3", len(drained))
	}
	for i, want := range []string{"r1", "r2", "r3"} {
		if drained[i].RequestID != want {
			t.Fatalf("drained[%d]=%q want %q", i, drained[i].RequestID, want)
		}
	}
	if _, ok := gate.Current(); ok || gate.QueueSize() != 0 {
		t.Fatal("gate should be empty after drain")
	}
}

func TestGatePending(t *testing.T) {
	var gate PermissionGate
	if pending := gate.Pending(); pending != nil {
		t.Fatalf("empty gate pending=%v want nil", pending)
	}
	gate.Enqueue(req("r1"))
	gate.Enqueue(req("r2"))
	pending := gate.Pending()
	if len(pending) != 2 || pending[0].RequestID != "r1" || pending[1].RequestID != "r2" {
		t.Fatalf("pending=%+v", pending)
	}
}
