package engine

import "fmt"

type PermissionRisk string

const (
	RiskReadOnly  PermissionRisk = "read_only"
	RiskSafeWrite PermissionRisk = "safe_write"
	RiskDangerous PermissionRisk = "dangerous"
)

type PermissionResponse string

const (
	PermissionAllow       PermissionResponse = "allow"
	PermissionDeny        PermissionResponse = "deny"
	PermissionAllowAlways PermissionResponse = "allow_always"
)

// PermissionRequest is a gated tool-execution approval. The backend blocks
// the tool call until it is answered.
type PermissionRequest struct {
	RequestID string         `json:"request_id"`
	ToolName  string         `json:"tool_name"`
	Arguments string         `json:"arguments"`
	Risk      PermissionRisk `json:"risk"`
}

// PermissionGate serializes tool approvals for one session: exactly one
// request is current at a time, the rest wait in arrival order. Tool
// execution inside the backend blocks on exactly one outstanding approval,
// so answering one-at-a-time keeps approvals aligned with the tool calls
// they gate.
//
// Not safe for concurrent use on its own; the owning Session serializes
// access.
type PermissionGate struct {
	current *PermissionRequest
	waiting []PermissionRequest
}

// Enqueue adds a request. If nothing is pending it becomes current,
// otherwise it waits behind the current request.
func (g *PermissionGate) Enqueue(req PermissionRequest) {
	if g.current == nil {
		r := req
		g.current = &r
		return
	}
	g.waiting = append(g.waiting, req)
}

// Current returns the request being shown, if any.
func (g *PermissionGate) Current() (PermissionRequest, bool) {
	if g.current == nil {
		return PermissionRequest{}, false
	}
	return *g.current, true
}

// Resolve pops the current request if requestID matches it and promotes the
// next queued request. A mismatched id fails with ErrStaleRequest, which
// stops a slow UI from double-answering or answering out of order.
func (g *PermissionGate) Resolve(requestID string) (PermissionRequest, error) {
	if g.current == nil || g.current.RequestID != requestID {
		return PermissionRequest{}, fmt.Errorf("permission request %q: %w", requestID, ErrStaleRequest)
	}
	resolved := *g.current
	if len(g.waiting) > 0 {
		next := g.waiting[0]
		g.waiting = g.waiting[1:]
		g.current = &next
	} else {
		g.current = nil
	}
	return resolved, nil
}

// Drain empties the gate and returns everything that was pending, current
// request first. Used on cancel so the backend is not left blocked on
// approvals for an abandoned turn.
func (g *PermissionGate) Drain() []PermissionRequest {
	var out []PermissionRequest
	if g.current != nil {
		out = append(out, *g.current)
		g.current = nil
	}
	out = append(out, g.waiting...)
	g.waiting = nil
	return out
}

// QueueSize is the number of requests waiting behind the current one. The
// UI badge reads it; it is not authoritative state.
func (g *PermissionGate) QueueSize() int {
	return len(g.waiting)
}

// Pending returns the current request followed by the waiting queue, in
// arrival order.
func (g *PermissionGate) Pending() []PermissionRequest {
	if g.current == nil {
		return nil
	}
	out := make([]PermissionRequest, 0, 1+len(g.waiting))
	out = append(out, *g.current)
	out = append(out, g.waiting...)
	return out
}
