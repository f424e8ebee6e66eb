// Package transport defines the messaging types shared by senders and the notifier.
package transport

import "context"

// ChatTarget addresses a chat. ChatID is kept as text so both numeric ids
// ("-100123") and public usernames ("@orders") work.
type ChatTarget struct {
	ChatID   string
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    string
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers text messages. Implementations make a single attempt.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
