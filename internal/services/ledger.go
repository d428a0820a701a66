package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/events"
	"budget/internal/log"
	"budget/internal/storage"
)

// Ledger is the process-wide ledger engine shared by every session.
//
// A single RWMutex scopes the whole ledger: every mutation holds the write
// lock across its read-decide-write sequence, so two expenses can never both
// pass the funds check against the same balance. Reads share the read lock.
type Ledger struct {
	mu        sync.RWMutex
	seeded    bool
	store     storage.Store
	registry  *PaymentMethodRegistry
	validator *BalanceValidator
	reports   cache.Cache[[]core.DescriptionAmount]
	publisher events.Publisher
	logger    *log.Logger
}

type LedgerOption func(*Ledger)

// WithPublisher emits a LedgerEvent after every committed mutation.
func WithPublisher(p events.Publisher) LedgerOption {
	return func(l *Ledger) {
		if p != nil {
			l.publisher = p
		}
	}
}

// WithReportCache caches per-description breakdowns until the next mutation.
func WithReportCache(c cache.Cache[[]core.DescriptionAmount]) LedgerOption {
	return func(l *Ledger) { l.reports = c }
}

func WithLogger(logger *log.Logger) LedgerOption {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger.WithComponent(log.ComponentLedger)
		}
	}
}

func NewLedger(store storage.Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:     store,
		registry:  NewPaymentMethodRegistry(store),
		validator: NewBalanceValidator(store),
		publisher: events.Nop{},
		logger:    log.New(log.Config{Component: log.ComponentLedger}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Init seeds the default payment method. Failing here means the store is
// unusable and startup should abort.
func (l *Ledger) Init(ctx context.Context) error {
	_, err := l.ListMethods(ctx)
	return err
}

// ListMethods returns every payment method, seeding "Cash" into an empty registry.
func (l *Ledger) ListMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	l.mu.RLock()
	methods, err := l.registry.List(ctx)
	l.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if len(methods) > 0 {
		return methods, nil
	}

	l.mu.Lock()
	methods, seeded, err := l.ensureSeededLocked(ctx)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if seeded != nil {
		l.publish(ctx, events.NewMethodEvent(*seeded))
	}
	return methods, nil
}

// ensureSeededLocked must be called with the write lock held.
func (l *Ledger) ensureSeededLocked(ctx context.Context) ([]core.PaymentMethod, *core.PaymentMethod, error) {
	methods, seeded, err := l.registry.EnsureDefault(ctx)
	if err != nil {
		l.logger.LogErr(ctx, "Failed to seed default payment method", err, log.FieldOperation, log.OpSeed)
		return nil, nil, err
	}
	l.seeded = true
	if seeded != nil {
		l.logger.InfoContext(ctx, "Default payment method seeded", log.FieldMethodName, seeded.Name)
	}
	return methods, seeded, nil
}

// AddMethod registers a payment method. An empty registry receives the
// default method first, so "Cash" always exists once any method does.
func (l *Ledger) AddMethod(ctx context.Context, name string) (core.PaymentMethod, error) {
	var (
		m      core.PaymentMethod
		seeded *core.PaymentMethod
		err    error
	)
	l.mu.Lock()
	if !l.seeded {
		_, seeded, err = l.ensureSeededLocked(ctx)
	}
	if err == nil {
		m, err = l.registry.Add(ctx, name)
	}
	l.mu.Unlock()
	if seeded != nil {
		l.publish(ctx, events.NewMethodEvent(*seeded))
	}
	if err != nil {
		l.logger.LogErr(ctx, "Payment method rejected", err, log.FieldMethodName, name)
		return core.PaymentMethod{}, err
	}

	l.logger.InfoContext(ctx, "Payment method added", log.FieldMethodName, m.Name, log.FieldOperation, log.OpCreate)
	l.publish(ctx, events.NewMethodEvent(m))
	return m, nil
}

// AvailableBalance returns total earnings minus total expenses.
func (l *Ledger) AvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validator.AvailableBalance(ctx)
}

// CanAfford reports whether an expense of amount would currently pass.
func (l *Ledger) CanAfford(ctx context.Context, amount decimal.Decimal) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validator.CanAfford(ctx, amount)
}

// List returns every transaction, newest first.
func (l *Ledger) List(ctx context.Context) ([]core.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.ListEntries(ctx)
}

func (l *Ledger) Get(ctx context.Context, id int64) (core.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.GetTransaction(ctx, id)
}

// BreakdownByType returns the total of each type, Earning first.
func (l *Ledger) BreakdownByType(ctx context.Context) ([]core.TypeTotal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	totals, err := l.store.Totals(ctx)
	if err != nil {
		return nil, err
	}
	return totals.ByType(), nil
}

// BreakdownByDescription returns one entry per transaction of type t.
func (l *Ledger) BreakdownByDescription(ctx context.Context, t core.TransactionType) ([]core.DescriptionAmount, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.reports != nil {
		if cached, ok := l.reports.Get(string(t)); ok {
			return slices.Clone(cached), nil
		}
	}
	out, err := l.store.DescriptionBreakdown(ctx, t)
	if err != nil {
		return nil, err
	}
	// Stored under the read lock so a concurrent writer's purge cannot be overtaken.
	if l.reports != nil {
		l.reports.Set(string(t), out)
	}
	return slices.Clone(out), nil
}

// Summary returns the listing and totals from one consistent snapshot.
func (l *Ledger) Summary(ctx context.Context) (core.Summary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries, err := l.store.ListEntries(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	totals, err := l.store.Totals(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.NewSummary(entries, totals), nil
}

// AddTransaction validates req, resolves its method and, for expenses,
// checks funds and inserts under the same write lock.
func (l *Ledger) AddTransaction(ctx context.Context, req TransactionRequest) (core.Transaction, error) {
	req, err := req.normalize()
	if err != nil {
		l.logger.LogErr(ctx, "Transaction rejected", err, log.FieldOperation, log.OpCreate)
		return core.Transaction{}, err
	}

	created, err := l.addLocked(ctx, req)
	if err != nil {
		l.logger.LogErr(ctx, "Transaction rejected", err,
			log.FieldOperation, log.OpCreate,
			log.FieldTxType, string(req.Type),
			log.FieldAmount, core.FormatAmount(req.Amount))
		return core.Transaction{}, err
	}

	l.logger.InfoContext(ctx, "Transaction added", log.NewFields().WithTransaction(created).WithOperation(log.OpCreate).ToSlice()...)
	l.publish(ctx, events.NewTransactionEvent(events.TransactionCreated, created))
	return created, nil
}

func (l *Ledger) addLocked(ctx context.Context, req TransactionRequest) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	methodID, err := l.resolveLocked(ctx, req.MethodName)
	if err != nil {
		return core.Transaction{}, err
	}

	if req.Type == core.Expense {
		ok, err := l.validator.CanAfford(ctx, req.Amount)
		if err != nil {
			return core.Transaction{}, err
		}
		if !ok {
			return core.Transaction{}, core.ErrInsufficientFunds
		}
	}

	created, err := l.store.CreateTransaction(ctx, core.Transaction{}.Apply(req.fields(methodID)))
	if err != nil {
		return core.Transaction{}, err
	}
	l.invalidateLocked()
	return created, nil
}

// UpdateTransaction overwrites the mutable fields of transaction id.
// Funds are not re-checked on update.
func (l *Ledger) UpdateTransaction(ctx context.Context, id int64, req TransactionRequest) (core.Transaction, error) {
	req, err := req.normalize()
	if err != nil {
		l.logger.LogErr(ctx, "Transaction update rejected", err, log.FieldTransactionID, id)
		return core.Transaction{}, err
	}

	updated, err := l.updateLocked(ctx, id, req)
	if err != nil {
		l.logger.LogErr(ctx, "Transaction update rejected", err, log.FieldTransactionID, id, log.FieldOperation, log.OpUpdate)
		return core.Transaction{}, err
	}

	l.logger.InfoContext(ctx, "Transaction updated", log.NewFields().WithTransaction(updated).WithOperation(log.OpUpdate).ToSlice()...)
	l.publish(ctx, events.NewTransactionEvent(events.TransactionUpdated, updated))
	return updated, nil
}

func (l *Ledger) updateLocked(ctx context.Context, id int64, req TransactionRequest) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	methodID, err := l.resolveLocked(ctx, req.MethodName)
	if err != nil {
		return core.Transaction{}, err
	}
	updated, err := l.store.UpdateTransaction(ctx, id, req.fields(methodID))
	if err != nil {
		return core.Transaction{}, err
	}
	l.invalidateLocked()
	return updated, nil
}

// DeleteTransaction removes transaction id irreversibly.
func (l *Ledger) DeleteTransaction(ctx context.Context, id int64) error {
	l.mu.Lock()
	entry, err := l.store.GetTransaction(ctx, id)
	if err == nil {
		err = l.store.DeleteTransaction(ctx, id)
	}
	if err == nil {
		l.invalidateLocked()
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.LogErr(ctx, "Transaction delete rejected", err, log.FieldTransactionID, id, log.FieldOperation, log.OpDelete)
		return err
	}

	l.logger.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id, log.FieldOperation, log.OpDelete)
	l.publish(ctx, events.NewTransactionEvent(events.TransactionDeleted, entry.Transaction))
	return nil
}

// resolveLocked must be called with the write lock held.
func (l *Ledger) resolveLocked(ctx context.Context, name string) (int64, error) {
	if !l.seeded {
		if _, _, err := l.ensureSeededLocked(ctx); err != nil {
			return 0, err
		}
	}
	id, err := l.registry.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("resolve payment method: %w", err)
	}
	return id, nil
}

func (l *Ledger) invalidateLocked() {
	if l.reports != nil {
		l.reports.Purge()
	}
}

// publish is best-effort: a broker failure never fails a committed mutation.
func (l *Ledger) publish(ctx context.Context, e events.LedgerEvent) {
	if err := l.publisher.Publish(ctx, e); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldEventID, e.ID.String(),
			log.FieldEventKind, string(e.Kind),
			log.FieldError, err)
	}
}

// Close releases the store and the publisher.
func (l *Ledger) Close() error {
	var errs []error
	if err := l.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if err := l.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}
