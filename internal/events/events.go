// Package events defines the messages the ledger emits after committed changes.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

type Kind string

const (
	TransactionCreated Kind = "transaction.created"
	TransactionUpdated Kind = "transaction.updated"
	TransactionDeleted Kind = "transaction.deleted"
	MethodCreated      Kind = "method.created"
)

// LedgerEvent describes one committed ledger mutation.
type LedgerEvent struct {
	ID            uuid.UUID            `json:"id"`
	Kind          Kind                 `json:"kind"`
	TransactionID int64                `json:"transaction_id,omitempty"`
	MethodID      int64                `json:"method_id,omitempty"`
	MethodName    string               `json:"method_name,omitempty"`
	Type          core.TransactionType `json:"type,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	Description   string               `json:"description,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NewTransactionEvent builds an event of kind k for t.
func NewTransactionEvent(k Kind, t core.Transaction) LedgerEvent {
	return LedgerEvent{
		ID:            uuid.New(),
		Kind:          k,
		TransactionID: t.ID,
		MethodID:      t.PaymentMethodID,
		Type:          t.Type,
		Amount:        t.Amount,
		Description:   t.Description,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewMethodEvent builds a method.created event.
func NewMethodEvent(m core.PaymentMethod) LedgerEvent {
	return LedgerEvent{
		ID:         uuid.New(),
		Kind:       MethodCreated,
		MethodID:   m.ID,
		MethodName: m.Name,
		Amount:     decimal.Zero,
		OccurredAt: time.Now().UTC(),
	}
}

// Key is the partition/routing key of the event.
func (e LedgerEvent) Key() string {
	return string(e.Kind)
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event published by ToJSON.
func FromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}

// Publisher delivers ledger events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, e LedgerEvent) error
	Close() error
}

// Nop discards every event. It is used when no events backend is configured.
type Nop struct{}

func (Nop) Publish(context.Context, LedgerEvent) error { return nil }
func (Nop) Close() error                               { return nil }
