package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/backend"
	"finbot/internal/cli"
	"finbot/internal/config"
	apphttp "finbot/internal/http"
	applog "finbot/internal/log"
	"finbot/internal/retry"
	"finbot/internal/sheets/google"
	"finbot/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger.Logger, (*config.Config).ValidateWorker)

	logger.Info("Starting finbot-worker", "backend", cfg.DataBackend)

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
	cleanup := func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	}
	if res.AMQP == nil {
		logger.Error("AMQP is required to consume ledger events")
		cleanup()
		os.Exit(1)
	}

	mirror, err := google.New(context.Background(), google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		cleanup()
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(res.Store, mirror, cfg.SyncBatchSize)

	health := apphttp.NewServer(":"+cfg.HealthPort, res.Store, logger.WithComponent(applog.ComponentHTTP))
	health.Start()

	ctx, done, _ := cli.GracefulShutdown(logger.Logger, shutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := health.Shutdown(shutdownCtx); err != nil {
			logger.Error("Health server shutdown error", applog.FieldError, err)
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		consume(ctx, logger, res.AMQP, mirrorWorker)
	}()
	go func() {
		defer wg.Done()
		// The first pass catches up on whatever was recorded while the worker was down.
		mirrorWorker.Run(ctx, cfg.SyncInterval)
	}()

	cli.WaitForShutdown(ctx, done)
	wg.Wait()
	cleanup()
	logger.Info("finbot-worker stopped")
}

// consume keeps a consumer attached until ctx is done, reconnecting with
// backoff when the broker drops the channel.
func consume(ctx context.Context, logger *applog.Logger, client *amqp.Client, w *worker.MirrorWorker) {
	for attempt := 0; ctx.Err() == nil; attempt++ {
		err := client.ConsumeLedgerEvents(ctx, w.HandleLedgerEvent)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		delay := retry.Backoff(attempt, time.Second, 30*time.Second)
		logger.Error("Ledger event consumption failed, retrying", applog.FieldError, err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
