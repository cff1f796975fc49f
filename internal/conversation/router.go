package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finbot/internal/core"
	"finbot/internal/export"
	"finbot/internal/log"
	"finbot/internal/report"
)

// TimestampLayout formats the time shown in entry confirmations.
const TimestampLayout = "02.01.2006 15:04"

type Ledger interface {
	Record(ctx context.Context, userID int64, kind core.Kind, category string, amount core.Money) (core.Transaction, error)
	Reset(ctx context.Context, userID int64) (int64, error)
	Export(ctx context.Context, userID int64) ([]core.Transaction, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, userID int64, days int) (core.Summary, error)
}

type ChartRenderer interface {
	Render(ctx context.Context, dists []report.Distribution) ([]report.Chart, error)
}

const (
	msgFailure      = "⚠️ Something went wrong, please try again later."
	msgAmountFormat = "❗ Enter the amount as a positive number, e.g. 1500 or 12.50. The entry was discarded, start again from the menu."
)

// Router turns events into replies. Errors never leave Handle; they become
// user-facing messages and log records.
type Router struct {
	ledger  Ledger
	reports Summarizer
	charts  ChartRenderer
	states  *StateStore

	now      func() time.Time
	location *time.Location
	logger   *log.Logger
	events   *log.StructuredLogger
}

type RouterOption func(*Router)

func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// WithLocation sets the zone confirmation timestamps are shown in.
func WithLocation(loc *time.Location) RouterOption {
	return func(r *Router) { r.location = loc }
}

func WithLogger(l *log.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

func NewRouter(ledger Ledger, reports Summarizer, charts ChartRenderer, states *StateStore, opts ...RouterOption) *Router {
	r := &Router{
		ledger:   ledger,
		reports:  reports,
		charts:   charts,
		states:   states,
		now:      time.Now,
		location: time.Local,
		logger:   log.Wrap(nil, log.ComponentConversation),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.events = log.NewStructuredLogger(r.logger)
	return r
}

// Handle processes one event. Callers must not run Handle concurrently for
// the same user.
func (r *Router) Handle(ctx context.Context, ev Event) []Reply {
	start := time.Now()
	defer func() {
		r.events.LogEvent(ctx, ev.UserID, ev.ChatID, ev.Kind.String(), time.Since(start))
	}()

	switch ev.Kind {
	case EventStart:
		r.states.Clear(ev.UserID)
		return []Reply{withMenu("Hi! Choose an action:")}
	case EventCancel:
		if _, had := r.states.Take(ev.UserID); had {
			return []Reply{withMenu("Entry cancelled.")}
		}
		return []Reply{withMenu("Nothing to cancel.")}
	case EventExport:
		return r.handleExport(ctx, ev)
	case EventUnknownCommand:
		return []Reply{withMenu("Unknown command. Available: /start, /export, /cancel.")}
	case EventText:
		return r.handleText(ctx, ev)
	case EventCategorySelected:
		return r.handleCategory(ev)
	case EventPeriodSelected:
		return r.handlePeriod(ctx, ev)
	case EventResetConfirm:
		return r.handleResetConfirm(ctx, ev)
	case EventResetCancel:
		return []Reply{withMenu("❌ Reset cancelled.")}
	default:
		r.logger.WarnContext(ctx, "Unhandled event kind", log.FieldEventKind, ev.Kind.String())
		return []Reply{withMenu("Choose an action:")}
	}
}

func (r *Router) handleText(ctx context.Context, ev Event) []Reply {
	// A pending amount wins over everything else, menu labels included.
	if p, ok := r.states.Get(ev.UserID); ok && p.AwaitingAmount() {
		r.states.Clear(ev.UserID)
		return r.recordAmount(ctx, ev, p)
	}

	switch parseMenu(ev.Text) {
	case menuRecordIncome:
		return r.startEntry(ev.UserID, core.Income)
	case menuRecordExpense:
		return r.startEntry(ev.UserID, core.Expense)
	case menuStatistics:
		return []Reply{{Text: "Choose a period:", Keyboard: periodKeyboard()}}
	case menuReset:
		return []Reply{{
			Text:     "⚠️ Are you sure you want to delete all your data?",
			Keyboard: resetKeyboard(),
		}}
	}

	if p, ok := r.states.Get(ev.UserID); ok {
		return []Reply{{
			Text:     fmt.Sprintf("Pick a %s category from the list.", p.Kind),
			Keyboard: categoryKeyboard(p.Kind),
		}}
	}
	return []Reply{withMenu("I didn't get that. Choose an action from the menu:")}
}

func (r *Router) startEntry(userID int64, k core.Kind) []Reply {
	r.states.Put(userID, PendingEntry{Kind: k, StartedAt: r.now()})
	return []Reply{{
		Text:     fmt.Sprintf("Choose the %s category:", k),
		Keyboard: categoryKeyboard(k),
	}}
}

func (r *Router) recordAmount(ctx context.Context, ev Event, p PendingEntry) []Reply {
	amount, err := core.ParseAmount(ev.Text)
	if err != nil {
		r.logger.DebugContext(ctx, "Rejected amount",
			log.FieldUserID, ev.UserID, log.FieldError, err)
		return []Reply{withMenu(msgAmountFormat)}
	}

	tx, err := r.ledger.Record(ctx, ev.UserID, p.Kind, p.Category, amount)
	if err != nil {
		r.events.LogError(ctx, "Failed to record transaction", err, log.OpRecord,
			log.NewFields().WithUser(ev.UserID, ev.ChatID))
		return []Reply{withMenu(msgFailure)}
	}
	r.events.LogTransactionRecorded(ctx, ev.UserID, tx.ID, string(tx.Kind), tx.Category, tx.Amount.Cents)

	return []Reply{withMenu(fmt.Sprintf("✅ Entry recorded!\n%s: %s\nCategory: %s\n🕒 %s",
		tx.Kind.Label(), tx.Amount, tx.Category, tx.CreatedAt.In(r.location).Format(TimestampLayout)))}
}

func (r *Router) handleCategory(ev Event) []Reply {
	p, ok := r.states.Get(ev.UserID)
	if !ok {
		return []Reply{withMenu("Nothing is pending. Choose Income or Expense first.")}
	}
	if p.AwaitingAmount() {
		return []Reply{text(fmt.Sprintf("Already waiting for the %s amount for %s. Send a number or /cancel.",
			p.Kind, p.Category))}
	}
	if !core.HasCategory(p.Kind, ev.Category) {
		return []Reply{{
			Text:     fmt.Sprintf("Unknown %s category %q. Pick one from the list.", p.Kind, ev.Category),
			Keyboard: categoryKeyboard(p.Kind),
		}}
	}

	p.Category = ev.Category
	r.states.Put(ev.UserID, p)
	return []Reply{text(fmt.Sprintf("Enter the amount for %s:", ev.Category))}
}

func (r *Router) handlePeriod(ctx context.Context, ev Event) []Reply {
	if _, ok := report.PeriodFor(ev.Days); !ok {
		return []Reply{{Text: "Unknown period. Choose one of the options:", Keyboard: periodKeyboard()}}
	}

	s, err := r.reports.Summarize(ctx, ev.UserID, ev.Days)
	if err != nil {
		r.events.LogError(ctx, "Failed to summarize ledger", err, log.OpSummary,
			log.NewFields().WithUser(ev.UserID, ev.ChatID).WithWindow(ev.Days))
		return []Reply{text(msgFailure)}
	}

	replies := []Reply{text(report.FormatSummary(s))}

	dists := report.Distributions(s)
	if len(dists) == 0 {
		return replies
	}
	charts, err := r.charts.Render(ctx, dists)
	if err != nil {
		r.events.LogError(ctx, "Failed to render charts", err, log.OpRender,
			log.NewFields().WithUser(ev.UserID, ev.ChatID).WithWindow(ev.Days))
		return append(replies, text("⚠️ Could not draw the charts this time."))
	}
	for _, c := range charts {
		replies = append(replies, Reply{Attachment: &Attachment{
			Kind:    AttachmentImage,
			Name:    string(c.Kind) + "_chart.png",
			Data:    c.PNG,
			Caption: c.Title,
		}})
	}
	return replies
}

func (r *Router) handleResetConfirm(ctx context.Context, ev Event) []Reply {
	n, err := r.ledger.Reset(ctx, ev.UserID)
	if err != nil {
		r.events.LogError(ctx, "Failed to reset ledger", err, log.OpReset,
			log.NewFields().WithUser(ev.UserID, ev.ChatID))
		return []Reply{withMenu(msgFailure)}
	}
	r.logger.InfoContext(ctx, "Ledger reset", log.FieldUserID, ev.UserID, "removed", n)
	return []Reply{withMenu(fmt.Sprintf("✅ All your data was deleted (%d entries).", n))}
}

func (r *Router) handleExport(ctx context.Context, ev Event) []Reply {
	rows, err := r.ledger.Export(ctx, ev.UserID)
	if err != nil {
		r.events.LogError(ctx, "Failed to load transactions for export", err, log.OpExport,
			log.NewFields().WithUser(ev.UserID, ev.ChatID))
		return []Reply{text(msgFailure)}
	}

	data, err := export.CSV(rows)
	if errors.Is(err, export.ErrNothingToExport) {
		return []Reply{text("Nothing to export yet.")}
	}
	if err != nil {
		r.events.LogError(ctx, "Failed to build export", err, log.OpExport,
			log.NewFields().WithUser(ev.UserID, ev.ChatID))
		return []Reply{text(msgFailure)}
	}

	return []Reply{{Attachment: &Attachment{
		Kind:    AttachmentDocument,
		Name:    export.FileName,
		Data:    data,
		Caption: "📄 All transactions",
	}}}
}
