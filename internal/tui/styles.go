package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("12")
	colorMuted  = lipgloss.Color("8")
	colorError  = lipgloss.Color("9")

	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	focusedBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	activeMark    = lipgloss.NewStyle().Foreground(colorAccent).Render("●")
	titleStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError)
	promptStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
)
