package progress

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for download progress output.
type theme struct {
	header     lipgloss.Style
	index      lipgloss.Style
	url        lipgloss.Style
	ok         lipgloss.Style
	fail       lipgloss.Style
	reason     lipgloss.Style
	status     lipgloss.Style
	hint       lipgloss.Style
	summaryBox lipgloss.Style
	summaryErr lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24")),
		index: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		url: lipgloss.NewStyle().
			Foreground(lipgloss.Color("111")),
		ok: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")).
			Bold(true),
		fail: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		reason: lipgloss.NewStyle().
			Foreground(lipgloss.Color("180")),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		summaryBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("114")).
			Padding(0, 1),
		summaryErr: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("203")).
			Padding(0, 1),
	}
}
