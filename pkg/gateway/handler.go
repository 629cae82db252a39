package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fetchbot/pkg/bus"
	"fetchbot/pkg/channel"
	"fetchbot/pkg/download"
	"fetchbot/pkg/storage"
)

// handleInbound is the channel.Handler for every adapter.
//
// Batches run on their own goroutine so the adapter keeps receiving
// messages, including /status and /cancel for the running batch.
func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage, conv channel.Conversation) error {
	if inbound.Document != nil {
		return s.handleDocument(ctx, inbound, conv)
	}

	if command, ok := parseCommand(inbound.Content); ok {
		return s.handleCommand(ctx, command, inbound, conv)
	}

	return s.handleText(ctx, inbound, conv, inbound.Content)
}

// parseCommand returns the lowercased command name for "/name@bot args" text.
func parseCommand(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}

	fields := strings.Fields(trimmed)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", false
	}

	return strings.ToLower(name), true
}

func (s *Service) handleCommand(ctx context.Context, command string, inbound bus.InboundMessage, conv channel.Conversation) error {
	var reply channel.Message

	switch command {
	case "start", "help":
		reply = s.welcomeMessage(inbound.SenderName)
	case "download":
		reply = channel.PlainMessage("📎 Send me the links as a message, or upload a .txt file with one link per line.")
	case "status":
		reply = statusMessage(s.batches.snapshot(inbound.ChatID))
	case "cancel":
		reply = cancelMessage(s.batches.cancel(inbound.ChatID))
	default:
		reply = channel.PlainMessage("Unknown command. Send /start to see what I can do.")
	}

	return s.reply(ctx, conv, reply)
}

func (s *Service) handleDocument(ctx context.Context, inbound bus.InboundMessage, conv channel.Conversation) error {
	doc := *inbound.Document
	if !isTextDocument(doc) {
		return s.reply(ctx, conv, channel.PlainMessage("📄 Please upload a plain text (.txt) file containing links."))
	}

	if err := s.reply(ctx, conv, channel.PlainMessage("📥 File received, processing...")); err != nil {
		return err
	}

	path, cleanup, err := conv.DownloadDocument(ctx, doc, s.cfg.Download.UploadLimit())
	defer cleanup()
	if err != nil {
		if errors.Is(err, channel.ErrDocumentTooLarge) {
			s.ingestFailed(ctx, inbound, err)
			limit := s.cfg.Download.UploadLimit()
			return s.reply(ctx, conv, channel.PlainMessage(fmt.Sprintf("❌ The file is too large. The limit is %d KB.", limit/1024)))
		}
		return s.rejectDocument(ctx, inbound, conv, fmt.Errorf("fetch document: %w", err))
	}

	content, err := os.ReadFile(path)
	cleanup()
	if err != nil {
		return s.rejectDocument(ctx, inbound, conv, fmt.Errorf("read staged document: %w", err))
	}

	return s.handleText(ctx, inbound, conv, strings.ToValidUTF8(string(content), ""))
}

// rejectDocument answers an ingestion failure without exposing internals.
func (s *Service) rejectDocument(ctx context.Context, inbound bus.InboundMessage, conv channel.Conversation, err error) error {
	s.ingestFailed(ctx, inbound, err)
	return s.reply(ctx, conv, channel.PlainMessage("❌ Could not process the file."))
}

func (s *Service) ingestFailed(ctx context.Context, inbound bus.InboundMessage, err error) {
	s.log.Error("Failed to ingest document", "chat_id", inbound.ChatID, "file_name", inbound.Document.FileName, "error", err)
	s.events.PublishEvent(ctx, bus.Event{
		Type:       bus.EventIngestFailed,
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
		Payload:    map[string]string{"file_name": inbound.Document.FileName},
		Error:      err.Error(),
	})
}

func (s *Service) handleText(ctx context.Context, inbound bus.InboundMessage, conv channel.Conversation, text string) error {
	urls := s.extractor.Extract(text)
	if len(urls) == 0 {
		return s.reply(ctx, conv, channel.PlainMessage("❌ No valid links found."))
	}

	if err := s.reply(ctx, conv, channel.PlainMessage(fmt.Sprintf("✅ %d links found! Starting download...", len(urls)))); err != nil {
		return err
	}

	return s.startBatch(ctx, inbound, conv, urls)
}

func (s *Service) startBatch(ctx context.Context, inbound bus.InboundMessage, conv channel.Conversation, urls []string) error {
	dir, err := s.store.ChatDir(inbound.ChatID)
	if err != nil {
		_ = s.reply(ctx, conv, channel.PlainMessage("❌ Could not prepare the download folder."))
		return fmt.Errorf("prepare download directory: %w", err)
	}

	batch := download.NewBatch(inbound.ChatID, dir, urls)
	batchCtx, cancel := context.WithCancel(ctx)
	tracked, release := s.batches.add(inbound.ChatID, batch.ID, len(batch.URLs), cancel)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer release()
		defer cancel()

		s.runBatch(batchCtx, inbound, conv, batch, tracked)
	}()

	return nil
}

func (s *Service) runBatch(ctx context.Context, inbound bus.InboundMessage, conv channel.Conversation, batch download.Batch, tracked *trackedBatch) {
	log := s.log.With("batch_id", batch.ID, "chat_id", inbound.ChatID)

	if !s.batches.acquire(ctx, tracked) {
		log.Info("Batch canceled before it started")
	}

	s.events.PublishEvent(ctx, bus.Event{
		Type:       bus.EventBatchStarted,
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
		BatchID:    batch.ID,
		Payload:    map[string]string{"total": strconv.Itoa(len(batch.URLs)), "dir": batch.Dir},
	})

	reporter := &chatReporter{
		conv:    conv,
		inbound: inbound,
		batchID: batch.ID,
		tracker: s.batches,
		tracked: tracked,
		events:  s.events,
		log:     log,
	}

	// Run still returns a full summary when ctx is already done.
	summary := s.runner.Run(ctx, batch, reporter)
	canceled := ctx.Err() != nil

	if _, err := conv.Send(context.WithoutCancel(ctx), summaryMessage(summary, storage.ChatDirName(inbound.ChatID), canceled)); err != nil {
		log.Error("Failed to send batch summary", "error", err)
	}

	eventType := bus.EventBatchCompleted
	if canceled {
		eventType = bus.EventBatchCanceled
	}
	s.events.PublishEvent(context.WithoutCancel(ctx), bus.Event{
		Type:       eventType,
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
		BatchID:    batch.ID,
		Payload: map[string]string{
			"total":     strconv.Itoa(summary.Total),
			"succeeded": strconv.Itoa(summary.Succeeded),
			"failed":    strconv.Itoa(summary.Failed),
		},
	})
}

func (s *Service) reply(ctx context.Context, conv channel.Conversation, msg channel.Message) error {
	if _, err := conv.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	return nil
}

func (s *Service) welcomeMessage(name string) channel.Message {
	extensions := s.extractor.Extensions()

	greeting := "👋 Welcome!"
	if name = strings.TrimSpace(name); name != "" {
		greeting = "👋 Welcome, " + name + "!"
	}

	var b channel.Builder
	b.Line(greeting).
		Line("I download PDF and media files from the links you send me.").
		Text("\n").
		Bold("How to use").Text("\n").
		Line("1. Send links directly as a message").
		Line("2. Or upload a .txt file with one link per line").
		Text("\n").
		Bold("Supported formats").Text("\n").
		Code(strings.Join(extensions, " ")).Text("\n\n").
		Bold("Commands").Text("\n").
		Line("/start - show this help").
		Line("/download - how to send links").
		Line("/status - check the bot and your downloads").
		Text("/cancel - stop your running downloads")

	return b.Message()
}

func statusMessage(batches []batchProgress) channel.Message {
	var b channel.Builder
	b.Text("🤖 Bot is up and running!")

	if len(batches) == 0 {
		b.Text("\nNo active downloads.")
		return b.Message()
	}

	for _, batch := range batches {
		if batch.Running {
			b.Text(fmt.Sprintf("\n▶️ Downloading: %d/%d done (✅ %d, ❌ %d)", batch.Done, batch.Total, batch.Succeeded, batch.Failed))
			continue
		}
		b.Text(fmt.Sprintf("\n⏳ Queued: %d links", batch.Total))
	}

	return b.Message()
}

func cancelMessage(canceled int) channel.Message {
	switch canceled {
	case 0:
		return channel.PlainMessage("Nothing to cancel.")
	case 1:
		return channel.PlainMessage("🛑 Canceling your download...")
	default:
		return channel.PlainMessage(fmt.Sprintf("🛑 Canceling %d downloads...", canceled))
	}
}

// isTextDocument accepts text/* uploads and anything named *.txt.
func isTextDocument(doc bus.Document) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(doc.MimeType)), "text/") {
		return true
	}

	return strings.EqualFold(filepath.Ext(doc.FileName), ".txt")
}
