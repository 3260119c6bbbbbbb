// Package tui provides the live Bubble Tea progress view of the partflow
// CLI.
//
// The view is opt-in (--tui) and shows the same events the rendered
// result reports. Output rendering after the view exits is unchanged.
package tui

import "github.com/charmbracelet/lipgloss"

// Bar gradient endpoints, from first byte to full body.
const (
	barStart = "#6366F1"
	barEnd   = "#10B981"
)

var (
	accent = lipgloss.Color("#6366F1")
	good   = lipgloss.Color("#10B981")
	busy   = lipgloss.Color("#F59E0B")
	bad    = lipgloss.Color("#EF4444")
	dim    = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(dim).Width(8)
	ValueStyle = lipgloss.NewStyle()
	HelpStyle  = lipgloss.NewStyle().Foreground(dim).Italic(true).MarginTop(1)

	// FileStyle and FieldStyle mark rows of the recent parts list.
	FileStyle  = lipgloss.NewStyle().Foreground(accent)
	FieldStyle = lipgloss.NewStyle().Foreground(dim)
)

// StateStyle colors a parser state or request outcome.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "success", "ended":
		return lipgloss.NewStyle().Bold(true).Foreground(good)
	case "error", "errored":
		return lipgloss.NewStyle().Bold(true).Foreground(bad)
	case "streaming", "negotiating", "aborted":
		return lipgloss.NewStyle().Foreground(busy)
	}
	return ValueStyle
}
