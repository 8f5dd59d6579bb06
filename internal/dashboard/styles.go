package dashboard

import "github.com/charmbracelet/lipgloss"

var (
	buyBarStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("2"))
	sellBarStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	symbolStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("75"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	buttonStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	buyHeadStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	sellHeadStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	captionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
