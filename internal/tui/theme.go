package tui

import "github.com/charmbracelet/lipgloss"

// Colors - shared palette for the chat surface
const (
	colorFg      = "#F8FAFC" // Slate 50
	colorMuted   = "#94A3B8" // Slate 400
	colorAccent  = "#06B6D4" // Cyan 500
	colorAccent2 = "#8B5CF6" // Purple 500
	colorSuccess = "#10B981" // Emerald 500
	colorWarning = "#F59E0B" // Amber 500
	colorError   = "#EF4444" // Red 500
	colorBorder  = "#334155" // Slate 700
	colorUserMsg = "#3B82F6" // Blue 500
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorUserMsg))

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFg))

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMuted))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError)).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMuted)).
			Padding(0, 1)

	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorFg)).
			Background(lipgloss.Color(colorAccent2)).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)
)
