package engine

import "time"

type LineKind string

const (
	LineUserInput     LineKind = "user_input"
	LineAssistantText LineKind = "assistant_text"
	LineToolCall      LineKind = "tool_call"
	LineToolResult    LineKind = "tool_result"
	LineInfo          LineKind = "info"
	LineWarning       LineKind = "warning"
	LineError         LineKind = "error"
	LineSuccess       LineKind = "success"
)

// Usage is a token-count snapshot attached to the event that produced it.
type Usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	ThinkingTokens      int `json:"thinking_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:         u.InputTokens + other.InputTokens,
		OutputTokens:        u.OutputTokens + other.OutputTokens,
		ThinkingTokens:      u.ThinkingTokens + other.ThinkingTokens,
		CacheReadTokens:     u.CacheReadTokens + other.CacheReadTokens,
		CacheCreationTokens: u.CacheCreationTokens + other.CacheCreationTokens,
	}
}

// IsZero reports whether every counter is zero.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// Line is one atomic event in a session's history. IDs are assigned by the
// session at append time, strictly increasing and never reused, even after
// truncation.
type Line struct {
	ID        int64     `json:"id"`
	Kind      LineKind  `json:"kind"`
	Content   string    `json:"content"`
	Usage     *Usage    `json:"usage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsUserInput reports whether the line opens a turn.
func (l Line) IsUserInput() bool {
	return l.Kind == LineUserInput
}
