package transport

import "context"

// ChatTarget identifies a destination chat or channel.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// MessageRef points at a message that was sent.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the outbound messaging surface the bot depends on. The command
// and menu side of the bot lives in a separate process; this core only sends.
type Adapter interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
