package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all the TUI styling definitions
type Styles struct {
	Title        lipgloss.Style
	MenuItem     lipgloss.Style
	MenuSelected lipgloss.Style
	Prompt       lipgloss.Style

	ResultTitle lipgloss.Style
	ResultMeta  lipgloss.Style
	ResultBody  lipgloss.Style
	Similarity  lipgloss.Style

	StatusBar lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
}

// DefaultStyles creates the default style set using the default renderer.
func DefaultStyles() Styles {
	return NewStyles(lipgloss.DefaultRenderer())
}

// NewStyles creates the style set using the given renderer.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2),
		MenuItem: r.NewStyle().
			Foreground(lipgloss.Color("252")).
			Padding(0, 2),
		MenuSelected: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213")).
			Padding(0, 2),
		Prompt: r.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true),

		ResultTitle: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75")),
		ResultMeta: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		ResultBody: r.NewStyle().
			Foreground(lipgloss.Color("252")),
		Similarity: r.NewStyle().
			Foreground(lipgloss.Color("76")).
			Bold(true),

		StatusBar: r.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		Error: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		Muted: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		Accent: r.NewStyle().
			Foreground(lipgloss.Color("213")),
	}
}
