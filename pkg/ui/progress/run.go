package progress

import (
	"context"
	"io"

	"fetchbot/pkg/download"

	tea "github.com/charmbracelet/bubbletea"
)

// Work runs a batch, reporting through reporter.
type Work func(ctx context.Context, reporter download.Reporter) download.Summary

// programReporter forwards runner progress into the bubbletea event loop.
type programReporter struct {
	program *tea.Program
}

func (r *programReporter) Downloading(_ context.Context, index int, total int, url string) {
	r.program.Send(startedMsg{index: index, total: total, url: url})
}

func (r *programReporter) Finished(_ context.Context, result download.Result) {
	r.program.Send(finishedMsg{result: result})
}

// Run shows a live progress view on out while work executes.
//
// Keyboard input is read from the controlling terminal, so stdin stays free
// for link input. Ctrl+C cancels work; Run returns once work has returned.
func Run(ctx context.Context, out io.Writer, title string, work Work) (download.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newModel(title, cancel),
		tea.WithOutput(out),
		tea.WithInputTTY(),
		tea.WithoutSignalHandler(),
	)

	summaryCh := make(chan download.Summary, 1)
	go func() {
		summary := work(ctx, &programReporter{program: program})
		summaryCh <- summary
		program.Send(doneMsg{summary: summary})
	}()

	_, err := program.Run()
	if err != nil {
		cancel()
	}

	return <-summaryCh, err
}
