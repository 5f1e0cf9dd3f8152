package engine

type EventKind string

const (
	EventTextDelta         EventKind = "text_delta"
	EventToolCall          EventKind = "tool_call"
	EventToolResult        EventKind = "tool_result"
	EventPermissionRequest EventKind = "permission_request"
	EventUsage             EventKind = "usage"
	EventStatusChanged     EventKind = "status_changed"
	EventError             EventKind = "error"
)

// BackendEvent is one inbound event from the backend process, already
// decoded by the bridge. Exactly the fields for the event's kind are set.
type BackendEvent struct {
	Kind EventKind `json:"kind"`

	// Text carries the payload for text_delta, tool_call, tool_result and
	// error events.
	Text string `json:"text,omitempty"`

	// Permission is set for permission_request events.
	Permission *PermissionRequest `json:"permission,omitempty"`

	// Usage is set for usage events.
	Usage *Usage `json:"usage,omitempty"`

	// Status is set for status_changed events.
	Status Status `json:"status,omitempty"`
}

// Attachment is an opaque payload submitted alongside a prompt. The engine
// forwards attachments to the backend without inspecting them.
type Attachment struct {
	Kind  string `json:"kind"` // text|image_path
	Label string `json:"label,omitempty"`
	Data  string `json:"data"`
}

// Commander is the outbound half of the backend bridge: the commands the
// engine issues. All calls are fire-and-forget from the session's point of
// view; turn completion arrives later as ordinary stream events.
type Commander interface {
	Start(sessionID string, prompt string, attachments []Attachment) error
	Continue(sessionID string, prompt string) error
	RespondPermission(sessionID string, requestID string, response PermissionResponse) error
	Cancel(sessionID string) error
}

// NopCommander discards every command. Useful for tests and for sessions
// restored from storage before a backend is attached.
type NopCommander struct{}

func (NopCommander) Start(string, string, []Attachment) error { return nil }

func (NopCommander) Continue(string, string) error { return nil }

func (NopCommander) RespondPermission(string, string, PermissionResponse) error { return nil }

func (NopCommander) Cancel(string) error { return nil }
