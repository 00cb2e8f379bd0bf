// Package styles centralizes lipgloss styling for the TUI surfaces.
package styles

import "github.com/charmbracelet/lipgloss"

// Theme groups the styles shared by the CLI views.
type Theme struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Muted  lipgloss.Style
	Good   lipgloss.Style
	Bad    lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

// Default returns the standard sessionkit theme.
func Default() Theme {
	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		Good: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
		Bad: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1),
	}
}
