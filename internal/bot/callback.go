package bot

import (
	"strconv"
	"strings"

	"finbot/internal/conversation"
)

// Callback data prefixes. Every button payload carries one, so no category
// name can be mistaken for a control token.
const (
	prefixCategory = "cat:"
	prefixPeriod   = "period:"
	dataConfirm    = "reset:confirm"
	dataCancel     = "reset:cancel"
)

// EncodeAction returns the callback data for a button action.
func EncodeAction(a conversation.Action) string {
	switch a.Kind {
	case conversation.EventCategorySelected:
		return prefixCategory + a.Category
	case conversation.EventPeriodSelected:
		return prefixPeriod + strconv.Itoa(a.Days)
	case conversation.EventResetConfirm:
		return dataConfirm
	case conversation.EventResetCancel:
		return dataCancel
	}
	return ""
}

// DecodeCallback parses callback data produced by EncodeAction.
func DecodeCallback(data string) (conversation.Action, bool) {
	switch {
	case data == dataConfirm:
		return conversation.Action{Kind: conversation.EventResetConfirm}, true
	case data == dataCancel:
		return conversation.Action{Kind: conversation.EventResetCancel}, true
	case strings.HasPrefix(data, prefixCategory):
		name := strings.TrimPrefix(data, prefixCategory)
		if name == "" {
			return conversation.Action{}, false
		}
		return conversation.SelectCategory(name), true
	case strings.HasPrefix(data, prefixPeriod):
		days, err := strconv.Atoi(strings.TrimPrefix(data, prefixPeriod))
		if err != nil {
			return conversation.Action{}, false
		}
		return conversation.SelectPeriod(days), true
	}
	return conversation.Action{}, false
}
