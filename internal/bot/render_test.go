package bot

import (
	"testing"

	"finbot/internal/conversation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestRenderText(t *testing.T) {
	msg, ok := Render(7, conversation.Reply{Text: "hello"}).(tgbotapi.MessageConfig)
	if !ok {
		t.Fatal("expected a MessageConfig")
	}
	if msg.ChatID != 7 || msg.Text != "hello" || msg.ReplyMarkup != nil {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestRenderMainMenu(t *testing.T) {
	msg := Render(7, conversation.Reply{Text: "menu", MainMenu: true}).(tgbotapi.MessageConfig)
	kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok {
		t.Fatalf("expected a reply keyboard, got %T", msg.ReplyMarkup)
	}
	if !kb.ResizeKeyboard || len(kb.Keyboard) != 2 || kb.Keyboard[0][0].Text != conversation.LabelIncome {
		t.Errorf("unexpected keyboard %+v", kb)
	}
}

func TestRenderInlineKeyboard(t *testing.T) {
	r := conversation.Reply{
		Text:     "pick",
		MainMenu: true,
		Keyboard: &conversation.Keyboard{Rows: [][]conversation.Button{
			{{Label: "Store", Action: conversation.SelectCategory("Store")}},
		}},
	}
	msg := Render(7, r).(tgbotapi.MessageConfig)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("inline keyboard should win over the main menu, got %T", msg.ReplyMarkup)
	}
	b := kb.InlineKeyboard[0][0]
	if b.Text != "Store" || b.CallbackData == nil || *b.CallbackData != "cat:Store" {
		t.Errorf("unexpected button %+v", b)
	}
}

func TestRenderAttachments(t *testing.T) {
	photo, ok := Render(7, conversation.Reply{Attachment: &conversation.Attachment{
		Kind: conversation.AttachmentImage, Name: "expense_chart.png", Data: []byte("png"), Caption: "Expense by category",
	}}).(tgbotapi.PhotoConfig)
	if !ok || photo.Caption != "Expense by category" {
		t.Fatalf("unexpected photo %+v", photo)
	}

	doc, ok := Render(7, conversation.Reply{Attachment: &conversation.Attachment{
		Kind: conversation.AttachmentDocument, Name: "finance_export.csv", Data: []byte("Date"),
	}}).(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatal("expected a DocumentConfig")
	}
	if fb, ok := doc.File.(tgbotapi.FileBytes); !ok || fb.Name != "finance_export.csv" {
		t.Errorf("unexpected file %+v", doc.File)
	}
}
