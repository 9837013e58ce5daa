// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Reply is what a use case wants shown to the user. At most one of
// Buttons/Keyboard is used; RemoveKeyboard hides a previously shown reply keyboard.
type Reply struct {
	Text           string
	Buttons        [][]InlineButton
	Keyboard       [][]string
	RemoveKeyboard bool
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
	SendReply(ctx context.Context, telegramID int64, reply Reply) error
}
