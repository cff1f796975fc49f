// Package conversation holds the per-user entry flow of the bot. It consumes
// transport-neutral events and produces transport-neutral replies.
package conversation

import "fmt"

// EventKind tags an inbound Event.
type EventKind int

const (
	EventStart EventKind = iota + 1
	EventCancel
	EventExport
	EventUnknownCommand
	EventText
	EventCategorySelected
	EventPeriodSelected
	EventResetConfirm
	EventResetCancel
)

var eventNames = map[EventKind]string{
	EventStart:            "start",
	EventCancel:           "cancel",
	EventExport:           "export",
	EventUnknownCommand:   "unknown_command",
	EventText:             "text",
	EventCategorySelected: "category_selected",
	EventPeriodSelected:   "period_selected",
	EventResetConfirm:     "reset_confirm",
	EventResetCancel:      "reset_cancel",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one inbound user action. Only the fields relevant to Kind are set:
// Text for EventText and EventUnknownCommand, Category for
// EventCategorySelected, Days for EventPeriodSelected.
type Event struct {
	Kind     EventKind
	UserID   int64
	ChatID   int64
	Text     string
	Category string
	Days     int
}

// Action is what a button does when tapped: an Event without its sender.
type Action struct {
	Kind     EventKind
	Category string
	Days     int
}

// Event binds the action to the user who tapped it.
func (a Action) Event(userID, chatID int64) Event {
	return Event{
		Kind:     a.Kind,
		UserID:   userID,
		ChatID:   chatID,
		Category: a.Category,
		Days:     a.Days,
	}
}

func SelectCategory(category string) Action {
	return Action{Kind: EventCategorySelected, Category: category}
}

func SelectPeriod(days int) Action {
	return Action{Kind: EventPeriodSelected, Days: days}
}
