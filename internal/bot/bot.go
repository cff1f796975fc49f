// Package bot connects the conversation router to Telegram.
package bot

import (
	"context"

	"finbot/internal/conversation"
	"finbot/internal/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) []conversation.Reply
}

type Config struct {
	Username     string
	Workers      int
	QueueSize    int
	PollTimeout  int
	ShowProgress bool
}

type Bot struct {
	api        API
	handler    Handler
	cfg        Config
	logger     *log.Logger
	dispatcher *Dispatcher
}

func New(api API, handler Handler, cfg Config, logger *log.Logger) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentBot)
	}
	b := &Bot{api: api, handler: handler, cfg: cfg, logger: logger}
	b.dispatcher = NewDispatcher(cfg.Workers, cfg.QueueSize, b.process, logger)
	return b
}

// Run polls Telegram until ctx is cancelled, then drains queued events.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	// Workers outlive ctx so queued events still get answered during shutdown.
	b.dispatcher.Start(context.WithoutCancel(ctx))
	defer b.dispatcher.Close()

	b.logger.InfoContext(ctx, "Bot started", "username", b.cfg.Username, "workers", len(b.dispatcher.shards))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.InfoContext(ctx, "Bot stopping, draining queued events")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.accept(ctx, update)
		}
	}
}

func (b *Bot) accept(ctx context.Context, update tgbotapi.Update) {
	if q := update.CallbackQuery; q != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			b.logger.WarnContext(ctx, "Failed to answer callback query", log.FieldError, err)
		}
	}

	ev, ok := EventFromUpdate(update, b.cfg.Username)
	if !ok {
		return
	}
	if err := b.dispatcher.Submit(ctx, ev); err != nil {
		b.logger.WarnContext(ctx, "Dropped event", log.FieldUserID, ev.UserID, log.FieldError, err)
	}
}

// process runs on a dispatcher worker.
func (b *Bot) process(ctx context.Context, ev conversation.Event) {
	var progress *tgbotapi.Message
	if b.cfg.ShowProgress && ev.Kind == conversation.EventPeriodSelected {
		if m, err := b.api.Send(tgbotapi.NewMessage(ev.ChatID, "⏳ Building charts…")); err == nil {
			progress = &m
		}
	}

	for _, r := range b.handler.Handle(ctx, ev) {
		if _, err := b.api.Send(Render(ev.ChatID, r)); err != nil {
			b.logger.ErrorContext(ctx, "Failed to send reply",
				log.FieldUserID, ev.UserID,
				log.FieldChatID, ev.ChatID,
				log.FieldError, err)
		}
	}

	if progress != nil {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(ev.ChatID, progress.MessageID)); err != nil {
			b.logger.DebugContext(ctx, "Failed to delete progress message", log.FieldError, err)
		}
	}
}
