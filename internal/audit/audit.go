// Package audit records every ledger event it receives as a structured log line.
package audit

import (
	"context"
	"sync/atomic"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/events"
	"budget/internal/log"
)

const seenCapacity = 10000

// Auditor logs ledger events. Redelivered events (same id) are logged once
// while their id is still remembered.
type Auditor struct {
	logger *log.Logger
	seen   *cache.LRUCache[struct{}]

	recorded   atomic.Int64
	duplicates atomic.Int64
}

func New(logger *log.Logger, dedupWindow time.Duration) *Auditor {
	return &Auditor{
		logger: logger.WithComponent(log.ComponentAudit),
		seen:   cache.NewLRUCache[struct{}](seenCapacity, dedupWindow),
	}
}

// Handle has the signature expected by amqp.Client.Consume.
func (a *Auditor) Handle(ctx context.Context, e events.LedgerEvent) error {
	id := e.ID.String()
	if _, ok := a.seen.Get(id); ok {
		a.duplicates.Add(1)
		a.logger.DebugContext(ctx, "Duplicate ledger event skipped", log.FieldEventID, id)
		return nil
	}
	a.seen.Set(id, struct{}{})
	a.recorded.Add(1)

	args := []any{
		log.FieldEventID, id,
		log.FieldEventKind, e.Kind,
		"occurred_at", e.OccurredAt,
	}
	switch e.Kind {
	case events.MethodCreated:
		args = append(args, log.FieldMethodName, e.MethodName)
	default:
		args = append(args,
			log.FieldTransactionID, e.TransactionID,
			log.FieldTxType, e.Type,
			log.FieldAmount, core.FormatAmount(e.Amount),
			log.FieldDescription, e.Description,
			log.FieldPaymentMethod, e.MethodID)
	}
	a.logger.InfoContext(ctx, "Ledger event", args...)
	return nil
}

// Seen exposes the dedup window so it can be swept periodically.
func (a *Auditor) Seen() cache.Cleaner {
	return a.seen
}

// Stats returns how many events were recorded and how many were duplicates.
func (a *Auditor) Stats() (recorded, duplicates int64) {
	return a.recorded.Load(), a.duplicates.Load()
}
