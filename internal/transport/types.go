// Package transport is the boundary between the bot and a chat platform.
// The bot only sees these types; platform adapters translate to and from
// their own SDK.
package transport

import "context"

// ParseHTML asks the adapter to render the text as Telegram-style HTML.
const ParseHTML = "HTML"

// Message is one incoming text message. ChatID doubles as the group key
// courses are tracked under.
type Message struct {
	ID       int
	ChatID   int64
	ThreadID int // 0 outside forum topics

	FromID       int64
	FromUsername string

	Text    string
	IsGroup bool
}

// ChatTarget addresses a chat, optionally a thread inside it.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// MessageRef identifies a sent message. For texts split into several
// messages it points at the first one.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string // "" for plain text, or ParseHTML
	DisablePreview bool
}

// Adapter delivers incoming messages on out until Stop, and sends replies.
// SendText splits texts that exceed the platform limit.
type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is optional. Adapters that implement it get the
// command list once at startup.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
