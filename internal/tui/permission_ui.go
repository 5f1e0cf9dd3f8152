package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"chatdeck/internal/engine"
)

const (
	permissionChoiceAllow = iota
	permissionChoiceDeny
	permissionChoiceAllowAlways
)

// permissionChoices returns the selectable answers for a request. Safe mode
// hides allow_always for dangerous tools; a standing approval for those
// defeats the point of gating them.
func permissionChoices(req engine.PermissionRequest, safeMode bool) []engine.PermissionResponse {
	choices := []engine.PermissionResponse{engine.PermissionAllow, engine.PermissionDeny}
	if !safeMode || req.Risk != engine.RiskDangerous {
		choices = append(choices, engine.PermissionAllowAlways)
	}
	return choices
}

func permissionChoiceLabel(response engine.PermissionResponse) string {
	switch response {
	case engine.PermissionAllow:
		return "Yes, allow once"
	case engine.PermissionDeny:
		return "Don't allow"
	case engine.PermissionAllowAlways:
		return "Always allow this tool"
	default:
		return string(response)
	}
}

func riskLabel(risk engine.PermissionRisk) string {
	switch risk {
	case engine.RiskReadOnly:
		return infoStyle.Render("read-only")
	case engine.RiskSafeWrite:
		return warningStyle.Render("writes files")
	default:
		return errorStyle.Render("dangerous")
	}
}

// renderPermissionBox draws the approval prompt for the current request,
// with the number of requests waiting behind it.
func renderPermissionBox(req engine.PermissionRequest, queued int, selected int, safeMode bool, width int) string {
	boxWidth := width - 2
	if boxWidth < 30 {
		boxWidth = 30
		if maxWidth := width - 2; boxWidth > maxWidth && maxWidth > 0 {
			boxWidth = maxWidth
		}
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent2)).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorFg))
	metaStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))

	choices := permissionChoices(req, safeMode)
	if selected < 0 || selected >= len(choices) {
		selected = 0
	}

	row := func(idx int, text string) string {
		prefix := "  "
		style := rowStyle
		if idx == selected {
			prefix = "› "
			style = activeStyle
		}
		return style.Render(prefix + text)
	}

	action := strings.TrimSpace(req.ToolName)
	if req.Arguments != "" {
		action += " " + req.Arguments
	}
	action = truncate.StringWithTail(action, uint(boxWidth), "…")

	var b strings.Builder
	b.WriteString(titleStyle.Render("Permission approval"))
	b.WriteString("  ")
	b.WriteString(riskLabel(req.Risk))
	if queued > 0 {
		b.WriteString("  ")
		b.WriteString(metaStyle.Render(fmt.Sprintf("(%d more waiting)", queued)))
	}
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(action))
	b.WriteString("\n\n")
	for i, choice := range choices {
		b.WriteString(row(i, fmt.Sprintf("%d. %s", i+1, permissionChoiceLabel(choice))))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("↑/↓ choose  •  enter confirm  •  esc deny"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colorBorder)).
		Padding(0, 1).
		Width(boxWidth).
		Render(b.String())
}
