package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"chatdeck/internal/engine"
)

// formatLine renders one history line for the timeline viewport. The id is
// shown so edit/regen/rollback commands can target lines directly.
func formatLine(line engine.Line, markdown *MarkdownRenderer, width int) string {
	prefix := fmt.Sprintf("%4d ", line.ID)
	body := line.Content

	switch line.Kind {
	case engine.LineUserInput:
		return prefix + userStyle.Render("› "+body)
	case engine.LineAssistantText:
		if markdown != nil {
			body = markdown.Render(body)
		}
		return prefix + assistantStyle.Render(body)
	case engine.LineToolCall:
		return prefix + toolStyle.Render("⚙ "+body)
	case engine.LineToolResult:
		return prefix + infoStyle.Render("→ "+truncateForTimeline(body, width))
	case engine.LineInfo:
		return prefix + infoStyle.Render(body)
	case engine.LineWarning:
		return prefix + warningStyle.Render("! "+body)
	case engine.LineError:
		return prefix + errorStyle.Render("✗ "+body)
	case engine.LineSuccess:
		return prefix + successStyle.Render("✓ "+body)
	default:
		return prefix + body
	}
}

// renderTimeline renders a full snapshot, separating turns with a blank
// line so the turn structure is visible without extra chrome.
func renderTimeline(lines []engine.Line, markdown *MarkdownRenderer, width int) string {
	if len(lines) == 0 {
		return infoStyle.Render("No messages yet. Type a prompt and press Enter.")
	}
	var b strings.Builder
	for i, line := range lines {
		if i > 0 && line.Kind == engine.LineUserInput {
			b.WriteString("\n")
		}
		rendered := formatLine(line, markdown, width)
		if width > 10 {
			rendered = wordwrap.String(rendered, width)
		}
		b.WriteString(rendered)
		b.WriteString("\n")
	}
	return b.String()
}

func truncateForTimeline(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	max := width - 10
	if max < 20 {
		max = 20
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
