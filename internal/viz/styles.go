package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	header   lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	selected lipgloss.Style
	auto     lipgloss.Style
	manual   lipgloss.Style
	alert    lipgloss.Style
	hint     lipgloss.Style
	panel    lipgloss.Style
	graph    lipgloss.Style
}

// stylesFor derives the UI styles from a theme so theme changes apply on
// the next frame.
func stylesFor(t Theme) styles {
	return styles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Muted),
		label:    lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:    lipgloss.NewStyle().Foreground(t.Text),
		selected: lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		auto:     lipgloss.NewStyle().Foreground(t.Success).Bold(true),
		manual:   lipgloss.NewStyle().Foreground(t.Warning).Bold(true),
		alert:    lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		hint:     lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(44),
		graph: lipgloss.NewStyle().Foreground(t.Primary).Padding(1, 2),
	}
}

// ProgressBar renders fraction in [0,1] as a bar of the given width.
func ProgressBar(fraction float64, width int, st lipgloss.Style) string {
	filled := int(fraction*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return st.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}
