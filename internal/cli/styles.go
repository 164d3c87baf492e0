// Package cli renders tagging runs in the terminal and asks the user to
// confirm retags.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/order-tagger/internal/model"
)

// Palette. Amazon orange leads; debits share the error red and credits the
// success teal so amounts read the same everywhere.
var (
	orange = lipgloss.Color("#FF9900")
	teal   = lipgloss.Color("#4ECDC4")
	amber  = lipgloss.Color("#FFE66D")
	red    = lipgloss.Color("#FF6B6B")
	mint   = lipgloss.Color("#95E1D3")
	grey   = lipgloss.Color("#666666")
)

var (
	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(orange).MarginBottom(1)
	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().Foreground(mint)
	// SubtleStyle formats previous values and other secondary text.
	SubtleStyle = lipgloss.NewStyle().Foreground(grey)
	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().Bold(true)

	successStyle = lipgloss.NewStyle().Foreground(teal)
	warningStyle = lipgloss.NewStyle().Foreground(amber)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(orange)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(0, 1)
)

// Icons used in report headings.
const (
	ChartIcon = "📊"
	LinkIcon  = "🔗"
	tagIcon   = "🏷️"
)

// FormatSuccess prefixes message with a check mark.
func FormatSuccess(message string) string {
	return successStyle.Render("✓ " + message)
}

// FormatError prefixes message with a cross.
func FormatError(message string) string {
	return errorStyle.Render("✗ " + message)
}

// FormatWarning prefixes message with a warning sign.
func FormatWarning(message string) string {
	return warningStyle.Render("⚠️ " + message)
}

// FormatInfo prefixes message with an info sign.
func FormatInfo(message string) string {
	return InfoStyle.Render("ℹ️ " + message)
}

// FormatTitle renders a section title with the tag icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(tagIcon + " " + title)
}

// FormatPrompt renders a question waiting for input.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " → ")
}

// FormatAmount colors a ledger amount: charges red, refunds and credits teal.
func FormatAmount(m model.Micro) string {
	if m < 0 {
		return successStyle.Render(m.String())
	}
	return errorStyle.Render(m.String())
}

// RenderBox draws content under title inside a rounded border.
func RenderBox(title, content string) string {
	heading := TitleStyle.UnsetMargins().Render(title)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, heading, content))
}
