package channel

import (
	"context"
	"errors"
	"net/http"

	"fetchbot/pkg/bus"
)

// ErrDocumentTooLarge is returned by DownloadDocument when the attachment exceeds the limit.
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

// MessageRef identifies a message already delivered to a chat so it can be edited.
type MessageRef struct {
	ChatID    string
	MessageID int
}

// Conversation is the reply surface for one inbound chat.
//
// Send and Edit must not fail the caller's flow because of formatting: an
// adapter that cannot render Message.Markdown falls back to Message.Plain.
type Conversation interface {
	Send(ctx context.Context, msg Message) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg Message) error
	// DownloadDocument stages an attached document as a local temp file no
	// larger than limit bytes. cleanup removes the file and is never nil.
	DownloadDocument(ctx context.Context, doc bus.Document, limit int64) (path string, cleanup func(), err error)
}

// Handler processes one inbound channel message. Replies go through conv.
type Handler func(ctx context.Context, inbound bus.InboundMessage, conv Conversation) error

// Adapter bridges one external transport (for example Telegram) into fetchbot.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

// RouteRegistrar is implemented by adapters that receive updates over HTTP.
// The gateway mounts their routes on its shared listener.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}
