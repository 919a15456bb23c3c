package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// ANSI 256 palette used by the watch view.
const (
	colorAccent  = lipgloss.Color("62")
	colorMuted   = lipgloss.Color("240")
	colorHint    = lipgloss.Color("241")
	colorRunning = lipgloss.Color("11")
	colorDone    = lipgloss.Color("10")
	colorFailed  = lipgloss.Color("9")
)

func paneBorder(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c)
}

func statusStyle(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

var (
	StyleFocusedBorder   = paneBorder(colorAccent)
	StyleUnfocusedBorder = paneBorder(colorMuted)

	StyleStatusRunning  = statusStyle(colorRunning)
	StyleStatusComplete = statusStyle(colorDone)
	StyleStatusFailed   = statusStyle(colorFailed)
	StyleStatusPending  = lipgloss.NewStyle().Foreground(colorMuted)

	StyleTitle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	StyleHelp     = lipgloss.NewStyle().Foreground(colorHint)
	StyleSelected = lipgloss.NewStyle().Background(colorAccent).Foreground(lipgloss.Color("0"))
)
