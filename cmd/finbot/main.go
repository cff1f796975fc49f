package main

import (
	"context"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"finbot/internal/backend"
	"finbot/internal/bot"
	"finbot/internal/cache"
	"finbot/internal/cli"
	"finbot/internal/config"
	"finbot/internal/conversation"
	apphttp "finbot/internal/http"
	applog "finbot/internal/log"
	"finbot/internal/report"
)

const (
	maxPendingUsers = 10000
	sweepInterval   = time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger.Logger, (*config.Config).ValidateBot)

	logger.Info("Starting finbot", "backend", cfg.DataBackend)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}

	engine := report.NewEngine(res.Store, report.WithCache(cfg.ReportCacheSize, cfg.ReportCacheTTL))
	res.Service.Subscribe(engine.Invalidate)

	states := conversation.NewStateStore(cfg.PendingTTL, maxPendingUsers)

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register(engine.Cache())
	caches.Register(states)
	caches.StartCleanup(sweepInterval)

	router := conversation.NewRouter(res.Service, engine,
		report.NewChartRenderer(cfg.ChartConcurrency),
		states,
		conversation.WithLogger(logger.WithComponent(applog.ComponentConversation)))

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", applog.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}
	api.Debug = cfg.BotDebug

	health := apphttp.NewServer(":"+cfg.HealthPort, res.Store, logger.WithComponent(applog.ComponentHTTP))
	health.Start()

	b := bot.New(api, router, bot.Config{
		Username:     api.Self.UserName,
		Workers:      cfg.DispatchWorkers,
		ShowProgress: true,
	}, logger.WithComponent(applog.ComponentBot))

	ctx, done, stop := cli.GracefulShutdown(logger.Logger, shutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := health.Shutdown(shutdownCtx); err != nil {
			logger.Error("Health server shutdown error", applog.FieldError, err)
		}
	})

	if err := b.Run(ctx); err != nil {
		logger.Error("Bot stopped with error", applog.FieldError, err)
	}
	if ctx.Err() == nil {
		// The updates channel closed on its own.
		logger.Warn("Bot stopped before a shutdown signal")
		stop()
	}
	cli.WaitForShutdown(ctx, done)

	// Run returns only after the dispatcher drained, so the store can go now.
	caches.Stop()
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", applog.FieldError, err)
	}
	logger.Info("finbot stopped")
}
