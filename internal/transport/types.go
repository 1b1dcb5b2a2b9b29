package transport

import (
	"context"
	"time"
)

type ChatTarget struct {
	ChatID   int64
	ThreadID int // forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Card is a platform-neutral rich message: title, accent color, fields,
// optional images and a footer. Adapters render it as best they can.
type Card struct {
	Title       string
	Description string
	Color       int // 0xRRGGBB
	Fields      []CardField

	ThumbnailURL string
	ImageURL     string

	Footer    string
	Timestamp time.Time
}

// CardField is one labelled value. When URL is set the value renders as a link.
type CardField struct {
	Name   string
	Value  string
	URL    string
	Inline bool
}

// Notification is one outbound message. Card wins over Text when both are set.
type Notification struct {
	Target  ChatTarget
	Card    *Card
	Text    string
	Options *SendOptions
}

type Adapter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendCard(ctx context.Context, to ChatTarget, card Card) (MessageRef, error)
}
