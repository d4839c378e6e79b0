package render

import "github.com/charmbracelet/lipgloss"

// Adaptive colors with light and dark terminal variants.
var (
	primaryColor   = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7C3AED"}
	secondaryColor = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#06B6D4"}
	successColor   = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#10B981"}
	warningColor   = lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#F59E0B"}
	errorColor     = lipgloss.AdaptiveColor{Light: "#FF5F56", Dark: "#EF4444"}
	mutedColor     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#94A3B8"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	dataOpStyle   = lipgloss.NewStyle().Foreground(primaryColor)
	lockOpStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	commitStyle   = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	abortStyle    = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(warningColor)
	snapshotStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)
