package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"fetchbot/pkg/bus"
	"fetchbot/pkg/channel"
	"fetchbot/pkg/download"
)

// chatReporter turns runner progress into one status message per URL,
// first posted as "downloading" and then edited in place with the outcome.
type chatReporter struct {
	conv    channel.Conversation
	inbound bus.InboundMessage
	batchID string
	tracker *batchTracker
	tracked *trackedBatch
	events  *bus.MessageBus
	log     *slog.Logger

	current channel.MessageRef
}

var _ download.Reporter = (*chatReporter)(nil)

func (r *chatReporter) Downloading(ctx context.Context, index int, total int, url string) {
	ref, err := r.conv.Send(context.WithoutCancel(ctx), downloadingMessage(index, total, url))
	if err != nil {
		r.log.Warn("Failed to send download status", "index", index, "error", err)
		r.current = channel.MessageRef{}
		return
	}

	r.current = ref
}

func (r *chatReporter) Finished(ctx context.Context, result download.Result) {
	r.tracker.record(r.tracked, result.OK())

	if err := r.conv.Edit(context.WithoutCancel(ctx), r.current, finishedMessage(result)); err != nil {
		r.log.Warn("Failed to update download status", "index", result.Index, "error", err)
	}

	event := bus.Event{
		Type:       bus.EventItemFinished,
		Channel:    r.inbound.Channel,
		ChatID:     r.inbound.ChatID,
		SessionKey: r.inbound.SessionKey,
		BatchID:    r.batchID,
		Payload: map[string]string{
			"index":  strconv.Itoa(result.Index),
			"url":    result.URL,
			"status": string(result.Status),
		},
		Error: result.Reason,
	}
	if result.OK() {
		event.Payload["filename"] = result.Filename
		event.Payload["bytes"] = strconv.FormatInt(result.Bytes, 10)
	}
	r.events.PublishEvent(context.WithoutCancel(ctx), event)

	r.current = channel.MessageRef{}
}

func downloadingMessage(index int, total int, url string) channel.Message {
	var b channel.Builder
	return b.Line(fmt.Sprintf("📥 Downloading (%d/%d):", index, total)).Code(url).Message()
}

func finishedMessage(result download.Result) channel.Message {
	var b channel.Builder
	if result.OK() {
		return b.Line(fmt.Sprintf("✅ Downloaded (%d/%d):", result.Index, result.Total)).Code(result.Filename).Message()
	}

	b.Line(fmt.Sprintf("❌ Failed (%d/%d):", result.Index, result.Total)).Code(result.URL)
	if result.Reason != "" {
		b.Text("\n" + result.Reason)
	}
	return b.Message()
}

// summaryMessage renders the terminal report for one batch.
func summaryMessage(summary download.Summary, dirName string, canceled bool) channel.Message {
	var b channel.Builder

	if canceled {
		b.Bold("🛑 Download canceled").Text("\n")
	} else {
		b.Bold("🎉 Download complete!").Text("\n")
	}
	b.Line(fmt.Sprintf("✅ Succeeded: %d/%d files", summary.Succeeded, summary.Total))
	b.Line(fmt.Sprintf("❌ Failed: %d/%d files", summary.Failed, summary.Total))
	b.Text("📁 Location: ").Code(dirName)

	preview, more := summary.FailedPreview(download.MaxFailedPreview)
	if len(preview) > 0 {
		b.Text("\n\n").Line("❌ Failed links:")
		for i, url := range preview {
			if i > 0 {
				b.Text("\n")
			}
			b.Code(url)
		}
		if more > 0 {
			b.Text(fmt.Sprintf("\n... and %d more", more))
		}
	}

	return b.Message()
}
