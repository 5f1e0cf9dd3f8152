package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"chatdeck/internal/store"
)

// pickerItem is one row in the session picker overlay.
type pickerItem struct {
	ID       string
	Title    string
	Subtitle string
	Live     bool
}

func pickerItemFromSummary(sum store.SessionSummary) pickerItem {
	title := sum.Record.Title
	if title == "" {
		title = sum.Record.ID
	}
	return pickerItem{
		ID:       sum.Record.ID,
		Title:    title,
		Subtitle: fmt.Sprintf("%s · %d lines", sum.Record.WorkspacePath, sum.LineCount),
	}
}

// filterPickerItems narrows items with fuzzy matching over title and
// subtitle, best matches first. An empty query keeps the original order.
func filterPickerItems(items []pickerItem, query string) []pickerItem {
	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}
	haystack := make([]string, len(items))
	for i, item := range items {
		haystack[i] = item.Title + " " + item.Subtitle
	}
	matches := fuzzy.Find(query, haystack)
	out := make([]pickerItem, 0, len(matches))
	for _, match := range matches {
		out = append(out, items[match.Index])
	}
	return out
}

func renderPicker(items []pickerItem, query string, selected int, width int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent2)).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorFg))
	metaStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))

	var b strings.Builder
	b.WriteString(titleStyle.Render("Sessions"))
	b.WriteString("  ")
	b.WriteString(metaStyle.Render("type to filter · enter opens · esc closes"))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render("filter: " + query))
	b.WriteString("\n\n")

	if len(items) == 0 {
		b.WriteString(metaStyle.Render("no matching sessions"))
	}
	for i, item := range items {
		marker := "  "
		style := rowStyle
		if i == selected {
			marker = "› "
			style = activeStyle
		}
		label := item.Title
		if item.Live {
			label += " " + successStyle.Render("●")
		}
		b.WriteString(style.Render(marker + label))
		b.WriteString("\n")
		b.WriteString(metaStyle.Render("    " + item.Subtitle))
		b.WriteString("\n")
	}

	boxWidth := width - 2
	if boxWidth < 40 {
		boxWidth = 40
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colorBorder)).
		Padding(0, 1).
		Width(boxWidth).
		Render(b.String())
}
