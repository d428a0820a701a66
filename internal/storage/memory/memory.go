package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/storage"
)

// Store keeps the ledger in process memory.
type Store struct {
	mu           sync.RWMutex
	methods      []core.PaymentMethod
	transactions map[int64]core.Transaction
	nextMethod   int64
	nextTx       int64
	now          func() time.Time
}

func New() *Store {
	return &Store{
		transactions: make(map[int64]core.Transaction),
		now:          time.Now,
	}
}

// NewWithMethods returns a store pre-seeded with the given method names.
// Blank and duplicate names are skipped.
func NewWithMethods(names ...string) *Store {
	s := New()
	for _, n := range names {
		n, err := core.ValidateMethodName(n)
		if err != nil {
			continue
		}
		if _, ok := s.methodByName(n); ok {
			continue
		}
		s.nextMethod++
		s.methods = append(s.methods, core.PaymentMethod{ID: s.nextMethod, Name: n})
	}
	return s
}

// WithClock replaces the clock used for new timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) methodByName(name string) (core.PaymentMethod, bool) {
	for _, m := range s.methods {
		if m.Name == name {
			return m, true
		}
	}
	return core.PaymentMethod{}, false
}

func (s *Store) methodByID(id int64) (core.PaymentMethod, bool) {
	for _, m := range s.methods {
		if m.ID == id {
			return m, true
		}
	}
	return core.PaymentMethod{}, false
}

// ListMethods implements storage.MethodStore
func (s *Store) ListMethods(_ context.Context) ([]core.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.methods), nil
}

// CreateMethod implements storage.MethodStore
func (s *Store) CreateMethod(_ context.Context, name string) (core.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.methodByName(name); ok {
		return core.PaymentMethod{}, core.ErrDuplicateMethod
	}
	s.nextMethod++
	m := core.PaymentMethod{ID: s.nextMethod, Name: name}
	s.methods = append(s.methods, m)
	return m, nil
}

// FindMethodByName implements storage.MethodStore
func (s *Store) FindMethodByName(_ context.Context, name string) (core.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.methodByName(name)
	if !ok {
		return core.PaymentMethod{}, fmt.Errorf("%w: %q", core.ErrMethodNotFound, name)
	}
	return m, nil
}

// CreateTransaction implements storage.TransactionStore
func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.methodByID(t.PaymentMethodID); !ok {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrMethodNotFound, t.PaymentMethodID)
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	s.nextTx++
	t.ID = s.nextTx
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) entry(t core.Transaction) core.Entry {
	m, _ := s.methodByID(t.PaymentMethodID)
	return core.Entry{Transaction: t, MethodName: m.Name}
}

// GetTransaction implements storage.TransactionStore
func (s *Store) GetTransaction(_ context.Context, id int64) (core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Entry{}, fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	return s.entry(t), nil
}

// UpdateTransaction implements storage.TransactionStore
func (s *Store) UpdateTransaction(_ context.Context, id int64, f core.TransactionFields) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	if _, ok := s.methodByID(f.PaymentMethodID); !ok {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrMethodNotFound, f.PaymentMethodID)
	}
	t = t.Apply(f)
	s.transactions[id] = t
	return t, nil
}

// DeleteTransaction implements storage.TransactionStore
func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	delete(s.transactions, id)
	return nil
}

// sorted returns transactions newest first; ties broken by id.
func (s *Store) sorted() []core.Transaction {
	out := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return out
}

// ListEntries implements storage.TransactionStore
func (s *Store) ListEntries(_ context.Context) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := s.sorted()
	entries := make([]core.Entry, len(sorted))
	for i, t := range sorted {
		entries[i] = s.entry(t)
	}
	return entries, nil
}

// Totals implements storage.AggregateReader
func (s *Store) Totals(_ context.Context) (core.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := core.Totals{Earnings: decimal.Zero, Expenses: decimal.Zero}
	for _, t := range s.transactions {
		switch t.Type {
		case core.Earning:
			totals.Earnings = totals.Earnings.Add(t.Amount)
		case core.Expense:
			totals.Expenses = totals.Expenses.Add(t.Amount)
		}
	}
	return totals, nil
}

// DescriptionBreakdown implements storage.AggregateReader
func (s *Store) DescriptionBreakdown(_ context.Context, typ core.TransactionType) ([]core.DescriptionAmount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.DescriptionAmount
	for _, t := range s.sorted() {
		if t.Type == typ {
			out = append(out, core.DescriptionAmount{Description: t.Description, Amount: t.Amount})
		}
	}
	return out, nil
}

var _ storage.Store = (*Store)(nil)
