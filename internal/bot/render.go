package bot

import (
	"finbot/internal/conversation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for _, labels := range conversation.MainMenu() {
		var row []tgbotapi.KeyboardButton
		for _, l := range labels {
			row = append(row, tgbotapi.NewKeyboardButton(l))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func inlineKeyboard(kb *conversation.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, EncodeAction(b.Action)))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Render builds the Telegram request that delivers r to chatID.
func Render(chatID int64, r conversation.Reply) tgbotapi.Chattable {
	if a := r.Attachment; a != nil {
		file := tgbotapi.FileBytes{Name: a.Name, Bytes: a.Data}
		switch a.Kind {
		case conversation.AttachmentImage:
			photo := tgbotapi.NewPhoto(chatID, file)
			photo.Caption = a.Caption
			return photo
		default:
			doc := tgbotapi.NewDocument(chatID, file)
			doc.Caption = a.Caption
			return doc
		}
	}

	msg := tgbotapi.NewMessage(chatID, r.Text)
	switch {
	case r.Keyboard != nil:
		msg.ReplyMarkup = inlineKeyboard(r.Keyboard)
	case r.MainMenu:
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	return msg
}
