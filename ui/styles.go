package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	subtleStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
	errorTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ECFD65")).Background(lipgloss.Color("#F25D94")).Padding(0, 1)

	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("#5A56E0")).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EE6FF8")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"})

	teacherNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5A56E0")).Bold(true)
	studentNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D")).Bold(true)
	userNameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EE6FF8")).Bold(true)

	speakingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ECFD65"))
	queuedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D9B600", Dark: "#B8A000"}).Italic(true)

	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}).
			Background(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#353533"})
	statusErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

func personaStyle(role string, isUser bool) lipgloss.Style {
	if isUser {
		return userNameStyle
	}
	if role == "teacher" {
		return teacherNameStyle
	}
	return studentNameStyle
}
