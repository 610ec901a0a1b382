package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style of the browser.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Selected    lipgloss.Style
	StatusError lipgloss.Style
	Border      lipgloss.Color
	Muted       lipgloss.Color
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Border: lipgloss.Color("#404040"),
	Muted:  lipgloss.Color("#737373"),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7AA2F7")).
		MarginBottom(1),
	Subtitle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a3a3a3")),
	Selected: lipgloss.NewStyle().
		Background(lipgloss.Color("#7AA2F7")).
		Foreground(lipgloss.Color("#1a1a1a")).
		Bold(true),
	StatusError: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ef4444")),
}
