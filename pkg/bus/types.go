package bus

// Document describes a file attached to an inbound message.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	Document   *Document         `json:"document,omitempty"`
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
