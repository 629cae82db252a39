package progress

import (
	"context"
	"fmt"
	"strings"

	"fetchbot/pkg/download"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type startedMsg struct {
	index int
	total int
	url   string
}

type finishedMsg struct {
	result download.Result
}

type doneMsg struct {
	summary download.Summary
}

// model renders a live view of one batch: finished items scroll up while the
// current URL spins below them.
type model struct {
	title   string
	theme   theme
	spinner spinner.Model
	cancel  context.CancelFunc

	index     int
	total     int
	current   string
	lines     []string
	summary   *download.Summary
	canceling bool
}

func newModel(title string, cancel context.CancelFunc) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	if cancel == nil {
		cancel = func() {}
	}

	return &model{
		title:   title,
		theme:   defaultTheme(),
		spinner: spin,
		cancel:  cancel,
	}
}

func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc", "q":
			// Keep running until the runner reports the canceled summary.
			m.canceling = true
			m.cancel()
		}
		return m, nil
	case startedMsg:
		m.index = typed.index
		m.total = typed.total
		m.current = typed.url
		return m, nil
	case finishedMsg:
		m.current = ""
		m.lines = append(m.lines, m.theme.resultLine(typed.result))
		return m, nil
	case doneMsg:
		summary := typed.summary
		m.summary = &summary
		m.current = ""
		return m, tea.Quit
	case spinner.TickMsg:
		if m.summary != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}

	return m, nil
}

func (m *model) View() string {
	parts := []string{m.theme.header.Render("⬇ " + m.title)}
	parts = append(parts, m.lines...)

	switch {
	case m.summary != nil:
		parts = append(parts, "", m.theme.summary(*m.summary))
	case m.canceling:
		parts = append(parts, m.theme.status.Render(m.spinner.View()+" canceling..."))
	case m.current != "":
		parts = append(parts, fmt.Sprintf("%s %s", m.spinner.View(), m.theme.downloadingLine(m.index, m.total, m.current)))
		parts = append(parts, m.theme.hint.Render("Ctrl+C to cancel"))
	default:
		parts = append(parts, m.spinner.View()+" starting...")
	}

	return strings.Join(parts, "\n") + "\n"
}
