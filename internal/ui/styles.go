// Package ui holds the terminal rendering layer: lipgloss styles shared by
// the CLI commands, a compact table renderer, the evaluation report, and
// the Bubble Tea memory browser behind `mindwing inspect`.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorText      = lipgloss.Color("252") // Near-white
	ColorCyan      = lipgloss.Color("87")  // Cyan accents

	// Base styles
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)

	// Components
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	// Browser tab bar
	StyleTabActive = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Underline(true)
	StyleTabInactive = lipgloss.NewStyle().
				Foreground(ColorSecondary)
)

// KappaStyle picks a style for a Cohen's kappa value using the Landis-Koch
// cut points: substantial agreement and above renders green, moderate
// renders plain, anything below renders as a warning.
func KappaStyle(kappa float64) lipgloss.Style {
	switch {
	case kappa >= 0.61:
		return StyleSuccess
	case kappa >= 0.41:
		return StyleTitle
	case kappa >= 0.21:
		return StyleWarning
	default:
		return StyleError
	}
}

// KappaLabel names the Landis-Koch agreement band for a kappa value.
func KappaLabel(kappa float64) string {
	switch {
	case kappa >= 0.81:
		return "almost perfect"
	case kappa >= 0.61:
		return "substantial"
	case kappa >= 0.41:
		return "moderate"
	case kappa >= 0.21:
		return "fair"
	case kappa >= 0.0:
		return "slight"
	default:
		return "poor"
	}
}
