// Package report renders mastery and usage summaries for the terminal.
package report

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/jeseci/internal/mastery"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)

	barFilled = lipgloss.NewStyle().Background(Secondary)
	barEmpty  = lipgloss.NewStyle().Background(Border)
)

// statusStyle colors a mastery status.
func statusStyle(s mastery.Status) lipgloss.Style {
	switch s {
	case mastery.StatusMastered:
		return lipgloss.NewStyle().Foreground(Success).Bold(true)
	case mastery.StatusInProgress:
		return lipgloss.NewStyle().Foreground(Accent)
	case mastery.StatusUnlocked:
		return lipgloss.NewStyle().Foreground(Secondary)
	default:
		return lipgloss.NewStyle().Foreground(TextDim)
	}
}
