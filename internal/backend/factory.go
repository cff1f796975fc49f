package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finbot/internal/amqp"
	"finbot/internal/ledger"
	"finbot/internal/ledger/memory"
	"finbot/internal/services"
	"finbot/internal/storage"
	"finbot/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store, connects to AMQP when configured and wires
// the ledger service over both.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	// Initialize AMQP client (optional)
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	// A typed nil would defeat the service's nil check.
	var publisher services.EventPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	service := services.NewLedgerService(store, publisher)

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Store:   store,
		Service: service,
		AMQP:    amqpClient,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (ledger.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		var opts []storage.Option
		if config.RetryAttempts > 0 {
			opts = append(opts, storage.WithRetryAttempts(config.RetryAttempts))
		}
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil

	case PostgresBackend:
		var opts []postgres.Option
		if config.RetryAttempts > 0 {
			opts = append(opts, postgres.WithRetryAttempts(config.RetryAttempts))
		}
		repo, err := postgres.Open(ctx, config.DatabaseURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL store")
		return repo, nil

	case MemoryBackend:
		f.logger.Warn("Using in-memory store, data is lost on exit")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
