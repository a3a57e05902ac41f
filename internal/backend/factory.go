package backend

import (
	"context"
	"errors"
	"fmt"

	"tesouraria/internal/amqp"
	"tesouraria/internal/log"
	"tesouraria/internal/storage"
	"tesouraria/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the ledger and, when configured, the event bus. An
// unreachable bus is logged and skipped; an unreachable ledger is an error.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		ledger storage.Ledger
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		ledger, err = storage.NewSQLiteRepository(config.SQLiteDBPath, config.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite ledger: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case PostgresBackend:
		ledger, err = storage.NewPostgresRepository(config.DatabaseURL, config.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres ledger: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Postgres backend")
	case MemoryBackend:
		ledger = memory.New(config.Location)
		f.logger.WarnContext(ctx, "Initialized memory backend; the ledger is lost on exit")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	result := &BackendResult{Ledger: ledger}
	if config.AMQPURL != "" {
		bus, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			result.Bus = bus
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if result.Bus != nil {
			errs = append(errs, result.Bus.Close())
		}
		errs = append(errs, ledger.Close())
		return errors.Join(errs...)
	}
	return result, nil
}
