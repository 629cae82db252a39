package channel

import "strings"

// Message carries the same reply rendered as Telegram MarkdownV2 and as plain text.
type Message struct {
	Markdown string
	Plain    string
}

// PlainMessage builds a message without markup.
func PlainMessage(text string) Message {
	var b Builder
	return b.Text(text).Message()
}

// Builder assembles a Message, escaping every piece for MarkdownV2.
type Builder struct {
	markdown strings.Builder
	plain    strings.Builder
}

// Text appends literal text.
func (b *Builder) Text(text string) *Builder {
	b.markdown.WriteString(EscapeMarkdownV2(text))
	b.plain.WriteString(text)
	return b
}

// Code appends text as an inline code span.
func (b *Builder) Code(text string) *Builder {
	b.markdown.WriteByte('`')
	b.markdown.WriteString(escapeCode(text))
	b.markdown.WriteByte('`')
	b.plain.WriteString(text)
	return b
}

// Bold appends emphasized text.
func (b *Builder) Bold(text string) *Builder {
	b.markdown.WriteByte('*')
	b.markdown.WriteString(EscapeMarkdownV2(text))
	b.markdown.WriteByte('*')
	b.plain.WriteString(text)
	return b
}

// Line appends text followed by a newline.
func (b *Builder) Line(text string) *Builder {
	return b.Text(text + "\n")
}

// Message returns the assembled reply.
func (b *Builder) Message() Message {
	return Message{Markdown: b.markdown.String(), Plain: b.plain.String()}
}

var markdownV2Escapes = map[rune]bool{
	'\\': true, '_': true, '*': true, '[': true, ']': true, '(': true, ')': true,
	'~': true, '`': true, '>': true, '#': true, '+': true, '-': true, '=': true,
	'|': true, '{': true, '}': true, '.': true, '!': true,
}

// EscapeMarkdownV2 escapes every character Telegram reserves in MarkdownV2 text.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		if markdownV2Escapes[r] {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeCode escapes the two characters that are special inside code spans.
func escapeCode(text string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text)
}
