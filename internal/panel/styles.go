package panel

import "github.com/charmbracelet/lipgloss"

var (
	accent    = lipgloss.Color("#50E3C2")
	highlight = lipgloss.Color("#F6AE2D")
	muted     = lipgloss.Color("#8CA1AE")
	border    = lipgloss.Color("#2D6A80")
	danger    = lipgloss.Color("#FF6B6B")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(muted)

	labelStyle = lipgloss.NewStyle().Foreground(muted).PaddingRight(1)

	selectorStyle = lipgloss.NewStyle().Padding(0, 1)

	focusedSelectorStyle = selectorStyle.
				Foreground(highlight).
				Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(danger).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border)

	focusedPanelStyle = panelStyle.BorderForeground(highlight)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)
)
