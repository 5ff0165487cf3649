package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	statStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	reasonStyles = map[string]lipgloss.Style{
		"killed":         lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		"finished":       lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		"generation_end": lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")),
	}
)

func reasonStyle(reason string) lipgloss.Style {
	if s, ok := reasonStyles[reason]; ok {
		return s
	}
	return mutedStyle
}
