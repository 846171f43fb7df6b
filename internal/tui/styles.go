package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/nexflow/internal/scheduler"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusInProgress = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusDone = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	StyleStatusReady = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39"))

	StyleStatusBlocked = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	StyleLate = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red")).
			Bold(true)

	StyleCritical = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// StatusStyle returns the style used to render a task status.
func StatusStyle(s scheduler.TaskStatus) lipgloss.Style {
	switch s {
	case scheduler.StatusDone:
		return StyleStatusDone
	case scheduler.StatusInProgress:
		return StyleStatusInProgress
	case scheduler.StatusReady:
		return StyleStatusReady
	default:
		return StyleStatusBlocked
	}
}

// StatusIcon returns a styled status indicator.
func StatusIcon(s scheduler.TaskStatus) string {
	switch s {
	case scheduler.StatusDone:
		return StyleStatusDone.Render("✓")
	case scheduler.StatusInProgress:
		return StyleStatusInProgress.Render("●")
	case scheduler.StatusReady:
		return StyleStatusReady.Render("▶")
	default:
		return StyleStatusBlocked.Render("○")
	}
}
