package bridge

import (
	"strings"
	"sync"
	"testing"

	"chatdeck/internal/engine"
	"chatdeck/internal/logging"
)

type capturedEvent struct {
	sessionID string
	event     engine.BackendEvent
}

type captureSink struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (s *captureSink) Deliver(sessionID string, ev engine.BackendEvent) {
	s.mu.Lock()
	s.events = append(s.events, capturedEvent{sessionID: sessionID, event: ev})
	s.mu.Unlock()
}

func (s *captureSink) captured() []capturedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capturedEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestDecodeStreamEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		kind    string
	}{
		{name: "text delta", raw: `{"kind":"text_delta","text":"hello"}`, kind: "text_delta"},
		{name: "missing kind", raw: `{"text":"hello"}`, wantErr: true},
		{name: "not json", raw: `garbage`, wantErr: true},
		{name: "permission", raw: `{"kind":"permission_request","request_id":"r1","tool_name":"exec","risk":"dangerous"}`, kind: "permission_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeStreamEvent([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decode err=%v wantErr=%v", err, tt.wantErr)
			}
			if err == nil && ev.Kind != tt.kind {
				t.Fatalf("kind=%q want %q", ev.Kind, tt.kind)
			}
		})
	}
}

func TestToBackendEvent(t *testing.T) {
	ev, ok := toBackendEvent(StreamEvent{Kind: "text_delta", Text: "hi"})
	if !ok || ev.Kind != engine.EventTextDelta || ev.Text != "hi" {
		t.Fatalf("text_delta: %+v ok=%v", ev, ok)
	}

	ev, ok = toBackendEvent(StreamEvent{
		Kind: "permission_request", RequestID: "r1", ToolName: "exec",
		Arguments: `{"command":"ls"}`, Risk: "read_only",
	})
	if !ok || ev.Permission == nil || ev.Permission.Risk != engine.RiskReadOnly {
		t.Fatalf("permission: %+v ok=%v", ev, ok)
	}

	// Unlabelled risk defaults to dangerous.
	ev, _ = toBackendEvent(StreamEvent{Kind: "permission_request", RequestID: "r2"})
	if ev.Permission.Risk != engine.RiskDangerous {
		t.Fatalf("default risk=%q want dangerous", ev.Permission.Risk)
	}

	ev, ok = toBackendEvent(StreamEvent{Kind: "usage", Usage: &usagePayload{InputTokens: 10, OutputTokens: 5}})
	if !ok || ev.Usage == nil || ev.Usage.InputTokens != 10 || ev.Usage.OutputTokens != 5 {
		t.Fatalf("usage: %+v", ev)
	}

	ev, ok = toBackendEvent(StreamEvent{Kind: "status_changed", Status: "completed"})
	if !ok || ev.Status != engine.StatusCompleted {
		t.Fatalf("status: %+v", ev)
	}

	if _, ok := toBackendEvent(StreamEvent{Kind: "telemetry"}); ok {
		t.Fatal("unknown kind should not map")
	}
}

func TestConsumeStream(t *testing.T) {
	sink := &captureSink{}
	b := New("/bin/true", nil, "", sink, logging.Discard())

	stream := strings.Join([]string{
		`{"kind":"text_delta","text":"chunk one"}`,
		``,
		`not json at all`,
		`{"kind":"unknown_thing"}`,
		`{"kind":"tool_call","text":"read_file"}`,
		`{"kind":"text_delta","session_id":"other","text":"routed"}`,
	}, "\n")

	b.consumeStream("sess-1", strings.NewReader(stream))

	events := sink.captured()
	if len(events) != 3 {
		t.Fatalf("delivered %d events want 3: %+v", len(events), events)
	}
	if events[0].sessionID != "sess-1" || events[0].event.Text != "chunk one" {
		t.Fatalf("event 0: %+v", events[0])
	}
	if events[1].event.Kind != engine.EventToolCall {
		t.Fatalf("event 1: %+v", events[1])
	}
	// A session_id on the wire overrides the owning session.
	if events[2].sessionID != "other" {
		t.Fatalf("event 2 routed to %q want other", events[2].sessionID)
	}
}

func TestEncodeCommand(t *testing.T) {
	payload, err := encodeCommand(command{Op: "user_prompt", Prompt: "fix bug"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	line := string(payload)
	if !strings.HasSuffix(line, "\n") {
		t.Fatal("command must be newline-terminated")
	}
	if !strings.Contains(line, `"op":"user_prompt"`) || !strings.Contains(line, `"prompt":"fix bug"`) {
		t.Fatalf("payload=%s", line)
	}
	if strings.Contains(line, "attachments") {
		t.Fatalf("empty attachments should be omitted: %s", line)
	}
}

func TestAttachmentPayloads(t *testing.T) {
	if got := attachmentPayloads(nil); got != nil {
		t.Fatalf("nil attachments -> %+v", got)
	}
	got := attachmentPayloads([]engine.Attachment{{Kind: "image_path", Label: "[Image 1]", Data: "/tmp/shot.png"}})
	if len(got) != 1 || got[0].Kind != "image_path" || got[0].Data != "/tmp/shot.png" {
		t.Fatalf("payloads=%+v", got)
	}
}
