package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/events"
	"budget/internal/kafka"
	"budget/internal/storage"
	"budget/internal/storage/memory"
	"budget/internal/storage/mysql"
)

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

// CreateStore opens the configured store. Any error here is fatal at startup.
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "dialect", repo.Dialect(), "db_path", config.SQLiteDBPath)
		return repo, nil

	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL backend", "dialect", repo.Dialect())
		return repo, nil

	case MySQLBackend:
		client, err := mysql.NewClient(ctx, config.MySQL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		store, err := mysql.NewStore(ctx, client)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialize MySQL store: %w", err)
		}
		f.logger.Info("Initialized MySQL backend", "host", config.MySQL.Host, "database", config.MySQL.DBName)
		return store, nil

	case MemoryBackend:
		f.logger.Warn("Initialized memory backend; ledger data will not survive a restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreatePublisher returns the configured event publisher. An unreachable
// broker degrades to a no-op publisher instead of failing startup.
func (f *DefaultFactory) CreatePublisher(ctx context.Context, config Config) (events.Publisher, error) {
	switch config.Events {
	case "", NoEvents:
		return events.Nop{}, nil

	case AMQPEvents:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			return events.Nop{}, nil
		}
		f.logger.Info("Initialized AMQP publisher",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return client, nil

	case KafkaEvents:
		f.logger.Info("Initialized Kafka publisher", "brokers", config.KafkaBrokers, "topic", config.KafkaTopic)
		return kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic), nil

	default:
		return nil, fmt.Errorf("unsupported events backend: %s", config.Events)
	}
}
