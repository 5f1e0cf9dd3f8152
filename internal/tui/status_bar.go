package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/truncate"

	"chatdeck/internal/engine"
)

// renderStatusBar builds the one-line footer: session title, execution
// status, token totals, and a badge for queued permission requests.
func renderStatusBar(sess *engine.Session, width int) string {
	if sess == nil {
		return statusBarStyle.Render("no session")
	}

	title := sess.Title()
	if title == "" {
		title = "new chat"
	}

	parts := []string{
		title,
		statusLabel(sess.Status()),
	}
	if totals := sess.UsageTotals(); !totals.IsZero() {
		parts = append(parts, fmt.Sprintf("tokens %d↑ %d↓", totals.InputTokens, totals.OutputTokens))
	}

	bar := statusBarStyle.Render(strings.Join(parts, "  •  "))
	if queued := sess.PermissionQueueSize(); queued > 0 {
		bar += " " + badgeStyle.Render(fmt.Sprintf("+%d pending", queued))
	}
	if width > 8 {
		bar = truncate.StringWithTail(bar, uint(width), "…")
	}
	return bar
}

func statusLabel(status engine.Status) string {
	switch status {
	case engine.StatusRunning:
		return "running"
	case engine.StatusPaused:
		return "paused"
	case engine.StatusCompleted:
		return "done"
	case engine.StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}
