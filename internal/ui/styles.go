package ui

import "github.com/charmbracelet/lipgloss"

// Color palette, one warm accent for matches.
const (
	ColorAmber    = "214" // Highlighted matches
	ColorAmberDim = "136" // Category names
	ColorWhite    = "255" // Headers
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Separators
	ColorGreen    = "114" // Success
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds the terminal styles used by the CLI.
type Styles struct {
	Header lipgloss.Style
	Mark   lipgloss.Style

	Category lipgloss.Style
	Score    lipgloss.Style
	Label    lipgloss.Style
	Dim      lipgloss.Style
	Bar      lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Mark:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAmber)),

		Category: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAmberDim)),
		Score:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Bar:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAmber)),

		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:   plain,
		Mark:     plain,
		Category: plain,
		Score:    plain,
		Label:    plain,
		Dim:      plain,
		Bar:      plain,
		Success:  plain,
		Warning:  plain,
		Error:    plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
