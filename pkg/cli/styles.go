// Package cli provides the terminal styling for the aitreon-call CLI.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // accent color (titles, agent lines)
	Dim     lipgloss.Color // dimmed/help text
	Warn    lipgloss.Color // time warnings
	Error   lipgloss.Color // failures
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#f0b429"),
	Error:   lipgloss.Color("#ff5f56"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Help  lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style

	// Agent and User style the two speaker roles in transcript lines.
	Agent lipgloss.Style
	User  lipgloss.Style

	// Interim styles the in-flight transcription line that is still
	// being revised.
	Interim lipgloss.Style

	phase map[string]lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Help:    lipgloss.NewStyle().Foreground(t.Dim),
		Warn:    lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Agent:   lipgloss.NewStyle().Foreground(t.Primary),
		User:    lipgloss.NewStyle(),
		Interim: lipgloss.NewStyle().Italic(true).Foreground(t.Dim),
		phase: map[string]lipgloss.Style{
			"connecting": lipgloss.NewStyle().Foreground(t.Dim),
			"listening":  lipgloss.NewStyle().Foreground(t.Primary),
			"talking":    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
			"thinking":   lipgloss.NewStyle().Foreground(t.Warn),
			"ended":      lipgloss.NewStyle().Foreground(t.Dim),
		},
	}
}

// Phase returns the style for a call-phase name. Unknown names render
// with the help style.
func (s Styles) Phase(name string) lipgloss.Style {
	if st, ok := s.phase[name]; ok {
		return st
	}
	return s.Help
}
