package telegram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"fetchbot/pkg/bus"
	"fetchbot/pkg/channel"
	"fetchbot/pkg/config"

	"github.com/mymmrac/telego"
)

const (
	channelName         = "telegram"
	messagePreviewLimit = 240
	webhookBufferSize   = 128
	webhookBodyLimit    = 4 << 20
	secretTokenHeader   = "X-Telegram-Bot-Api-Secret-Token"
)

// botAPI is the subset of *telego.Bot the adapter calls once running.
type botAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(filepath string) string
}

// Adapter bridges Telegram updates into fetchbot inbound messages.
//
// Updates arrive by long polling unless a webhook URL is configured, in which
// case the gateway listener feeds them through RegisterRoutes.
type Adapter struct {
	cfg        config.TelegramConfig
	allowFrom  map[string]struct{}
	httpClient *http.Client
	log        *slog.Logger

	webhookPath    string
	webhookUpdates chan telego.Update
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
// httpClient is used to fetch uploaded documents from the Bot API file endpoint.
func NewAdapter(cfg config.TelegramConfig, httpClient *http.Client, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}

	adapter := &Adapter{
		cfg:        cfg,
		allowFrom:  allowFromSet(cfg.AllowFrom),
		httpClient: httpClient,
		log:        log.With("component", "channel.telegram"),
	}

	if cfg.UsesWebhook() {
		adapter.webhookPath = webhookPath(token)
		adapter.webhookUpdates = make(chan telego.Update, webhookBufferSize)
	}

	return adapter, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run connects to the Bot API and forwards messages to handler until ctx ends.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := a.updates(ctx, bot)
	if err != nil {
		return err
	}

	return a.consume(ctx, bot, updates, handler)
}

// updates selects the update source: webhook when configured, long polling otherwise.
func (a *Adapter) updates(ctx context.Context, bot *telego.Bot) (<-chan telego.Update, error) {
	if a.webhookUpdates == nil {
		if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
			a.log.Warn("Failed to clear webhook before polling", "error", err)
		}

		updates, err := bot.UpdatesViaLongPolling(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("start long polling: %w", err)
		}
		a.log.Info("Telegram channel started", "mode", "polling")
		return updates, nil
	}

	url := strings.TrimRight(strings.TrimSpace(a.cfg.WebhookURL), "/") + a.webhookPath
	if err := bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:         url,
		SecretToken: strings.TrimSpace(a.cfg.WebhookSecret),
	}); err != nil {
		return nil, fmt.Errorf("set webhook: %w", err)
	}

	a.log.Info("Telegram channel started", "mode", "webhook", "path", a.webhookPath)
	return a.webhookUpdates, nil
}

func (a *Adapter) consume(ctx context.Context, bot botAPI, updates <-chan telego.Update, handler channel.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			a.dispatch(ctx, bot, update, handler)
		}
	}
}

// dispatch converts one update and runs the handler. Handler errors are logged,
// never returned, so one bad message cannot stop the adapter.
func (a *Adapter) dispatch(ctx context.Context, bot botAPI, update telego.Update, handler channel.Handler) {
	message := update.Message
	if message == nil {
		return
	}
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return
	}

	inbound, ok := inboundFromMessage(message)
	if !ok {
		return
	}

	if !a.senderAllowed(inbound.SenderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", inbound.SenderID)
		return
	}

	inbound.Metadata = map[string]string{"update_id": strconv.Itoa(update.UpdateID)}
	a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", inbound.SenderID, "has_document", inbound.Document != nil, "content", previewText(inbound.Content))

	conv := &conversation{bot: bot, chatID: message.Chat.ID, httpClient: a.httpClient, log: a.log}
	if err := handler(ctx, inbound, conv); err != nil {
		a.log.Error("Failed to process inbound message", "chat_id", inbound.ChatID, "error", err)
	}
}

// RegisterRoutes mounts the webhook endpoint when webhook mode is configured.
func (a *Adapter) RegisterRoutes(mux *http.ServeMux) {
	if a.webhookUpdates == nil {
		return
	}

	mux.HandleFunc("POST "+a.webhookPath, a.handleWebhook)
}

func (a *Adapter) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if secret := strings.TrimSpace(a.cfg.WebhookSecret); secret != "" && r.Header.Get(secretTokenHeader) != secret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update telego.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, webhookBodyLimit)).Decode(&update); err != nil {
		a.log.Warn("Rejected webhook payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	select {
	case a.webhookUpdates <- update:
		w.WriteHeader(http.StatusOK)
	case <-r.Context().Done():
		http.Error(w, "request canceled", http.StatusServiceUnavailable)
	case <-time.After(5 * time.Second):
		// Telegram retries non-2xx deliveries.
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}
}

// inboundFromMessage maps a Telegram message to a channel-neutral inbound message.
// Messages with neither text nor a document are skipped.
func inboundFromMessage(message *telego.Message) (bus.InboundMessage, bool) {
	content := strings.TrimSpace(message.Text)
	if content == "" {
		content = strings.TrimSpace(message.Caption)
	}

	var document *bus.Document
	if doc := message.Document; doc != nil {
		document = &bus.Document{
			FileID:   doc.FileID,
			FileName: doc.FileName,
			MimeType: doc.MimeType,
			Size:     doc.FileSize,
		}
	}

	if content == "" && document == nil {
		return bus.InboundMessage{}, false
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)
	inbound := bus.InboundMessage{
		Channel:    channelName,
		ChatID:     chatID,
		SessionKey: sessionKey(chatID),
		Content:    content,
		Document:   document,
	}
	if message.From != nil {
		inbound.SenderID = strconv.FormatInt(message.From.ID, 10)
		inbound.SenderName = strings.TrimSpace(message.From.FirstName)
	}

	return inbound, true
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// sessionKey maps one Telegram chat to one session namespace.
func sessionKey(chatID string) string {
	return "telegram:" + strings.TrimSpace(chatID)
}

// webhookPath derives a stable, unguessable path from the token without exposing it.
func webhookPath(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return "/telegram/" + hex.EncodeToString(sum[:6])
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns at most messagePreviewLimit runes of message text for logs.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	runes := []rune(trimmed)
	return string(runes[:messagePreviewLimit]) + "..."
}
