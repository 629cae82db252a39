package progress

import (
	"context"
	"fmt"
	"io"
	"strings"

	"fetchbot/pkg/download"
)

func (t theme) downloadingLine(index int, total int, url string) string {
	return fmt.Sprintf("%s %s %s", t.status.Render("📥"), t.index.Render(fmt.Sprintf("(%d/%d)", index, total)), t.url.Render(url))
}

func (t theme) resultLine(result download.Result) string {
	counter := t.index.Render(fmt.Sprintf("(%d/%d)", result.Index, result.Total))
	if result.OK() {
		return fmt.Sprintf("%s %s %s %s", t.ok.Render("✅"), counter, result.Filename, t.hint.Render(humanBytes(result.Bytes)))
	}

	return fmt.Sprintf("%s %s %s %s", t.fail.Render("❌"), counter, t.url.Render(result.URL), t.reason.Render(result.Reason))
}

func (t theme) summary(summary download.Summary) string {
	lines := []string{
		fmt.Sprintf("✅ Succeeded: %d/%d", summary.Succeeded, summary.Total),
		fmt.Sprintf("❌ Failed: %d/%d", summary.Failed, summary.Total),
		fmt.Sprintf("📁 Location: %s", summary.Dir),
	}

	preview, more := summary.FailedPreview(download.MaxFailedPreview)
	if len(preview) > 0 {
		lines = append(lines, "", "Failed links:")
		lines = append(lines, preview...)
		if more > 0 {
			lines = append(lines, fmt.Sprintf("... and %d more", more))
		}
	}

	box := t.summaryBox
	if summary.Failed > 0 {
		box = t.summaryErr
	}

	return box.Render(strings.Join(lines, "\n"))
}

// RenderSummary formats a batch summary for a terminal.
func RenderSummary(summary download.Summary) string {
	return defaultTheme().summary(summary)
}

// LineReporter prints one line per event. It suits output that is not a terminal.
type LineReporter struct {
	w     io.Writer
	theme theme
}

var _ download.Reporter = (*LineReporter)(nil)

func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w, theme: defaultTheme()}
}

func (r *LineReporter) Downloading(_ context.Context, index int, total int, url string) {
	fmt.Fprintln(r.w, r.theme.downloadingLine(index, total, url))
}

func (r *LineReporter) Finished(_ context.Context, result download.Result) {
	fmt.Fprintln(r.w, r.theme.resultLine(result))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for value := n / unit; value >= unit; value /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
