package bridge

import (
	"encoding/json"
	"fmt"

	"chatdeck/internal/engine"
)

// StreamEvent is one parsed NDJSON line from the backend's stdout stream.
type StreamEvent struct {
	Kind      string `json:"kind"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`

	// permission_request fields
	RequestID string `json:"request_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Risk      string `json:"risk,omitempty"`

	// usage fields
	Usage *usagePayload `json:"usage,omitempty"`

	// status_changed field
	Status string `json:"status,omitempty"`
}

type usagePayload struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	ThinkingTokens      int `json:"thinking_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
}

// command is one outbound NDJSON line written to the backend's stdin.
type command struct {
	Op          string              `json:"op"` // user_prompt|permission_response|cancel
	Prompt      string              `json:"prompt,omitempty"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
	RequestID   string              `json:"request_id,omitempty"`
	Response    string              `json:"response,omitempty"`
}

type attachmentPayload struct {
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
	Data  string `json:"data"`
}

func decodeStreamEvent(raw []byte) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return StreamEvent{}, fmt.Errorf("decode stream event: %w", err)
	}
	if ev.Kind == "" {
		return StreamEvent{}, fmt.Errorf("decode stream event: missing kind")
	}
	return ev, nil
}

// toBackendEvent maps a wire event onto the engine's event union. Unknown
// kinds come back with ok=false and are dropped with a log line; the stream
// keeps going.
func toBackendEvent(ev StreamEvent) (engine.BackendEvent, bool) {
	switch ev.Kind {
	case "text_delta":
		return engine.BackendEvent{Kind: engine.EventTextDelta, Text: ev.Text}, true
	case "tool_call":
		return engine.BackendEvent{Kind: engine.EventToolCall, Text: ev.Text}, true
	case "tool_result":
		return engine.BackendEvent{Kind: engine.EventToolResult, Text: ev.Text}, true
	case "permission_request":
		return engine.BackendEvent{Kind: engine.EventPermissionRequest, Permission: &engine.PermissionRequest{
			RequestID: ev.RequestID,
			ToolName:  ev.ToolName,
			Arguments: ev.Arguments,
			Risk:      parseRisk(ev.Risk),
		}}, true
	case "usage":
		usage := &engine.Usage{}
		if ev.Usage != nil {
			usage.InputTokens = ev.Usage.InputTokens
			usage.OutputTokens = ev.Usage.OutputTokens
			usage.ThinkingTokens = ev.Usage.ThinkingTokens
			usage.CacheReadTokens = ev.Usage.CacheReadTokens
			usage.CacheCreationTokens = ev.Usage.CacheCreationTokens
		}
		return engine.BackendEvent{Kind: engine.EventUsage, Usage: usage}, true
	case "status_changed":
		return engine.BackendEvent{Kind: engine.EventStatusChanged, Status: engine.Status(ev.Status)}, true
	case "error":
		return engine.BackendEvent{Kind: engine.EventError, Text: ev.Text}, true
	default:
		return engine.BackendEvent{}, false
	}
}

func parseRisk(raw string) engine.PermissionRisk {
	switch raw {
	case "read_only":
		return engine.RiskReadOnly
	case "safe_write":
		return engine.RiskSafeWrite
	case "dangerous":
		return engine.RiskDangerous
	default:
		// Unlabelled requests get the cautious default.
		return engine.RiskDangerous
	}
}

func encodeCommand(cmd command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return append(data, '\n'), nil
}

func attachmentPayloads(attachments []engine.Attachment) []attachmentPayload {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]attachmentPayload, len(attachments))
	for i, att := range attachments {
		out[i] = attachmentPayload{Kind: att.Kind, Label: att.Label, Data: att.Data}
	}
	return out
}
