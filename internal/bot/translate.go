package bot

import (
	"strings"

	"finbot/internal/conversation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EventFromUpdate converts a Telegram update into a conversation event.
// Updates the bot does not act on (stickers, edits, unknown buttons) yield false.
func EventFromUpdate(u tgbotapi.Update, botUsername string) (conversation.Event, bool) {
	if q := u.CallbackQuery; q != nil {
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return conversation.Event{}, false
		}
		a, ok := DecodeCallback(q.Data)
		if !ok {
			return conversation.Event{}, false
		}
		return a.Event(q.From.ID, q.Message.Chat.ID), true
	}

	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return conversation.Event{}, false
	}
	ev := conversation.Event{UserID: msg.From.ID, ChatID: msg.Chat.ID}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "menu":
			ev.Kind = conversation.EventStart
		case "cancel":
			ev.Kind = conversation.EventCancel
		case "export":
			ev.Kind = conversation.EventExport
		default:
			ev.Kind = conversation.EventUnknownCommand
			ev.Text = msg.Text
		}
		return ev, true
	}

	text := msg.Text
	if botUsername != "" && (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) {
		text = strings.TrimSpace(strings.ReplaceAll(text, "@"+botUsername, ""))
	}
	ev.Kind = conversation.EventText
	ev.Text = text
	return ev, true
}
