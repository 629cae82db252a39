package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"fetchbot/pkg/bus"
	"fetchbot/pkg/channel"
	"fetchbot/pkg/storage"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// conversation replies into one Telegram chat.
type conversation struct {
	bot        botAPI
	chatID     int64
	httpClient *http.Client
	log        *slog.Logger
}

var _ channel.Conversation = (*conversation)(nil)

func (c *conversation) Send(ctx context.Context, msg channel.Message) (channel.MessageRef, error) {
	ref := channel.MessageRef{ChatID: strconv.FormatInt(c.chatID, 10)}

	sent, err := c.bot.SendMessage(ctx, c.sendParams(msg, true))
	if err != nil && msg.Markdown != "" {
		c.log.Warn("MarkdownV2 send rejected, retrying as plain text", "chat_id", c.chatID, "error", err)
		sent, err = c.bot.SendMessage(ctx, c.sendParams(msg, false))
	}
	if err != nil {
		return ref, fmt.Errorf("send telegram message: %w", err)
	}

	if sent != nil {
		ref.MessageID = sent.MessageID
	}
	return ref, nil
}

func (c *conversation) Edit(ctx context.Context, ref channel.MessageRef, msg channel.Message) error {
	if ref.MessageID == 0 {
		// The original status message never made it; post the update instead.
		_, err := c.Send(ctx, msg)
		return err
	}

	_, err := c.bot.EditMessageText(ctx, c.editParams(ref.MessageID, msg, true))
	if err != nil && msg.Markdown != "" {
		c.log.Warn("MarkdownV2 edit rejected, retrying as plain text", "chat_id", c.chatID, "message_id", ref.MessageID, "error", err)
		_, err = c.bot.EditMessageText(ctx, c.editParams(ref.MessageID, msg, false))
	}
	if err != nil {
		return fmt.Errorf("edit telegram message: %w", err)
	}

	return nil
}

// DownloadDocument resolves the file through the Bot API and stages it locally.
func (c *conversation) DownloadDocument(ctx context.Context, doc bus.Document, limit int64) (string, func(), error) {
	noop := func() {}
	if strings.TrimSpace(doc.FileID) == "" {
		return "", noop, errors.New("document file id is required")
	}
	if limit > 0 && doc.Size > limit {
		return "", noop, fmt.Errorf("%w: %d bytes", channel.ErrDocumentTooLarge, doc.Size)
	}

	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: doc.FileID})
	if err != nil {
		return "", noop, fmt.Errorf("get telegram file: %w", err)
	}
	if file == nil || strings.TrimSpace(file.FilePath) == "" {
		return "", noop, errors.New("telegram file has no download path")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return "", noop, fmt.Errorf("build file request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", noop, fmt.Errorf("download telegram file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", noop, fmt.Errorf("download telegram file: HTTP %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}

	path, cleanup, err := storage.StageUpload(body, doc.FileName)
	if err != nil {
		return "", noop, err
	}

	if limit > 0 {
		if size, statErr := fileSize(path); statErr == nil && size > limit {
			cleanup()
			return "", noop, fmt.Errorf("%w: more than %d bytes", channel.ErrDocumentTooLarge, limit)
		}
	}

	return path, cleanup, nil
}

func (c *conversation) sendParams(msg channel.Message, markdown bool) *telego.SendMessageParams {
	if markdown && msg.Markdown != "" {
		return tu.Message(tu.ID(c.chatID), msg.Markdown).WithParseMode(telego.ModeMarkdownV2)
	}

	return tu.Message(tu.ID(c.chatID), msg.Plain)
}

func (c *conversation) editParams(messageID int, msg channel.Message, markdown bool) *telego.EditMessageTextParams {
	params := &telego.EditMessageTextParams{
		ChatID:    tu.ID(c.chatID),
		MessageID: messageID,
		Text:      msg.Plain,
	}
	if markdown && msg.Markdown != "" {
		params.Text = msg.Markdown
		params.ParseMode = telego.ModeMarkdownV2
	}

	return params
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}
