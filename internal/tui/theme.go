package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style of the review screen.
type Theme struct {
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Approved lipgloss.Style
	Rejected lipgloss.Style
	Detail   lipgloss.Style
	Selected lipgloss.Style
	Border   lipgloss.Color
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#fafafa")).
		MarginBottom(1),
	Subtle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#737373")),
	Approved: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10b981")),
	Rejected: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ef4444")),
	Detail: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")).
		Padding(0, 1),
	Selected: lipgloss.NewStyle().
		Background(lipgloss.Color("#7c3aed")).
		Foreground(lipgloss.Color("#fafafa")).
		Bold(true),
	Border: lipgloss.Color("#404040"),
}
