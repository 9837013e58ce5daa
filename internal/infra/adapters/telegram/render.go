package telegram

import (
	"strings"

	"telegram-order-bot/internal/domain/ports/adapter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// renderReply converts a use case reply to a Telegram message.
// Inline buttons win over a reply keyboard; RemoveKeyboard applies only when neither is set.
func renderReply(chatID int64, reply adapter.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.DisableWebPagePreview = true

	switch {
	case len(reply.Buttons) > 0:
		if kb, ok := inlineKeyboard(reply.Buttons); ok {
			msg.ReplyMarkup = kb
		}
	case len(reply.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Keyboard))
		for _, row := range reply.Keyboard {
			if len(row) == 0 {
				continue
			}
			r := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, label := range row {
				r = append(r, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, r)
		}
		msg.ReplyMarkup = tgbotapi.NewOneTimeReplyKeyboard(rows...)
	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	return msg
}

// inlineKeyboard builds inline rows:
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else the label itself is used as callback data
func inlineKeyboard(rows [][]adapter.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	if len(kbRows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...), true
}
