package conversation

import (
	"strings"

	"finbot/internal/core"
	"finbot/internal/report"
)

// Main menu labels, shown on the persistent reply keyboard.
const (
	LabelIncome     = "💰 Income"
	LabelExpense    = "💸 Expense"
	LabelStatistics = "📊 Statistics"
	LabelReset      = "🗑 Reset"
)

// MainMenu returns the main-menu layout, two buttons per row.
func MainMenu() [][]string {
	return [][]string{
		{LabelIncome, LabelExpense},
		{LabelStatistics, LabelReset},
	}
}

type menuCommand int

const (
	menuNone menuCommand = iota
	menuRecordIncome
	menuRecordExpense
	menuStatistics
	menuReset
)

var menuWords = map[string]menuCommand{
	"income":     menuRecordIncome,
	"expense":    menuRecordExpense,
	"statistics": menuStatistics,
	"stats":      menuStatistics,
	"reset":      menuReset,
}

// parseMenu recognises a main-menu label, with or without its emoji.
func parseMenu(s string) menuCommand {
	s = strings.TrimSpace(s)
	switch s {
	case LabelIncome:
		return menuRecordIncome
	case LabelExpense:
		return menuRecordExpense
	case LabelStatistics:
		return menuStatistics
	case LabelReset:
		return menuReset
	}
	return menuWords[strings.ToLower(s)]
}

func categoryKeyboard(k core.Kind) *Keyboard {
	kb := &Keyboard{}
	for _, c := range core.Categories(k) {
		kb.Rows = append(kb.Rows, []Button{{Label: c, Action: SelectCategory(c)}})
	}
	return kb
}

var periodIcons = map[int]string{1: "📅", 7: "🗓", 30: "📆", 90: "📈", 180: "🪙", 365: "📅"}

func periodKeyboard() *Keyboard {
	kb := &Keyboard{}
	for _, p := range report.Periods() {
		label := p.Label
		if icon := periodIcons[p.Days]; icon != "" {
			label = icon + " " + label
		}
		kb.Rows = append(kb.Rows, []Button{{Label: label, Action: SelectPeriod(p.Days)}})
	}
	return kb
}

func resetKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Button{
		{{Label: "✅ Confirm reset", Action: Action{Kind: EventResetConfirm}}},
		{{Label: "❌ Cancel", Action: Action{Kind: EventResetCancel}}},
	}}
}
