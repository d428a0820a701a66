package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/events"
	"budget/internal/log"
	"budget/internal/storage/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []events.LedgerEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, e events.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// tickingClock returns strictly increasing timestamps.
func tickingClock() func() time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func newTestLedger(t *testing.T, opts ...LedgerOption) (*Ledger, *memory.Store, *recorder) {
	t.Helper()
	store := memory.New().WithClock(tickingClock())
	rec := &recorder{}
	opts = append([]LedgerOption{
		WithLogger(log.Discard()),
		WithPublisher(rec),
		WithReportCache(cache.NewLRUCache[[]core.DescriptionAmount](8, time.Minute)),
	}, opts...)
	return NewLedger(store, opts...), store, rec
}

func req(typ core.TransactionType, amount, desc, method string) TransactionRequest {
	return TransactionRequest{
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		MethodName:  method,
	}
}

var errDiskFull = errors.New("disk full")

// failingStore fails chosen operations with a storage error.
type failingStore struct {
	*memory.Store
	failCreate atomic.Bool
	failTotals atomic.Bool
}

func (s *failingStore) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if s.failCreate.Load() {
		return core.Transaction{}, core.StorageError("insert transaction", errDiskFull)
	}
	return s.Store.CreateTransaction(ctx, t)
}

func (s *failingStore) Totals(ctx context.Context) (core.Totals, error) {
	if s.failTotals.Load() {
		return core.Totals{}, core.StorageError("sum transactions", errDiskFull)
	}
	return s.Store.Totals(ctx)
}
