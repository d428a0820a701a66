// Package backend builds the storage and event backends selected by configuration.
package backend

import (
	"context"

	"budget/internal/events"
	"budget/internal/storage"
	"budget/internal/storage/mysql"
)

// Factory creates the ledger's collaborators from configuration.
type Factory interface {
	CreateStore(ctx context.Context, config Config) (storage.Store, error)
	CreatePublisher(ctx context.Context, config Config) (events.Publisher, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string
	MySQL        mysql.Config

	Events       EventsType
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
}

type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MySQLBackend    BackendType = "mysql"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MySQLBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

type EventsType string

const (
	NoEvents    EventsType = "none"
	AMQPEvents  EventsType = "amqp"
	KafkaEvents EventsType = "kafka"
)

func (et EventsType) IsValid() bool {
	switch et {
	case NoEvents, AMQPEvents, KafkaEvents:
		return true
	default:
		return false
	}
}
