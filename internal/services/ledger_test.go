package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/bxcodec/faker/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"budget/internal/core"
	"budget/internal/events"
	"budget/internal/log"
	"budget/internal/storage"
	"budget/internal/storage/memory"
)

func balance(t *testing.T, l *Ledger) string {
	t.Helper()
	b, err := l.AvailableBalance(context.Background())
	require.NoError(t, err)
	return core.FormatAmount(b)
}

func TestLedger_SalaryFoodCarScenario(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	assert.Equal(t, "0.00", balance(t, l))

	_, err := l.AddTransaction(ctx, req(core.Earning, "100", "Salary", "Cash"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance(t, l))

	_, err = l.AddTransaction(ctx, req(core.Expense, "30", "Food", "Cash"))
	require.NoError(t, err)
	assert.Equal(t, "70.00", balance(t, l))

	_, err = l.AddTransaction(ctx, req(core.Expense, "1000", "Car", "Cash"))
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
	assert.Equal(t, "70.00", balance(t, l))

	entries, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEqual(t, "Car", e.Description)
	}
	assert.Equal(t, "Food", entries[0].Description, "newest first")
	assert.Equal(t, "Cash", entries[0].MethodName)
}

func TestLedger_ConcurrentExpensesCannotOverdraw(t *testing.T) {
	for round := 0; round < 20; round++ {
		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			ctx := context.Background()
			l, _, _ := newTestLedger(t)
			_, err := l.AddTransaction(ctx, req(core.Earning, "100", "Salary", "Cash"))
			require.NoError(t, err)

			var ok, insufficient atomic.Int32
			var g errgroup.Group
			for i := 0; i < 2; i++ {
				g.Go(func() error {
					_, err := l.AddTransaction(ctx, req(core.Expense, "60", "Rent", "Cash"))
					switch {
					case err == nil:
						ok.Add(1)
					case errors.Is(err, core.ErrInsufficientFunds):
						insufficient.Add(1)
					default:
						return err
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			assert.Equal(t, int32(1), ok.Load())
			assert.Equal(t, int32(1), insufficient.Load())
			assert.Equal(t, "40.00", balance(t, l))
		})
	}
}

func TestLedger_ManyConcurrentExpenses(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	_, err := l.AddTransaction(ctx, req(core.Earning, "100", "Salary", "Cash"))
	require.NoError(t, err)

	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := l.AddTransaction(ctx, req(core.Expense, "10", "Snack", "Cash"))
			if err == nil {
				ok.Add(1)
				return nil
			}
			if errors.Is(err, core.ErrInsufficientFunds) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			b, err := l.AvailableBalance(ctx)
			if err != nil {
				return err
			}
			if b.IsNegative() {
				return fmt.Errorf("observed negative balance %s", b)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(10), ok.Load())
	assert.Equal(t, "0.00", balance(t, l))
}

func TestLedger_EarningsIncreaseBalanceExactly(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	total := decimal.Zero
	for i := 0; i < 25; i++ {
		amount := decimal.New(int64(i*137+1), -2)
		_, err := l.AddTransaction(ctx, TransactionRequest{
			Type:        core.Earning,
			Amount:      amount,
			Description: faker.Word(),
			MethodName:  "Cash",
		})
		require.NoError(t, err)
		total = total.Add(amount)

		got, err := l.AvailableBalance(ctx)
		require.NoError(t, err)
		require.True(t, total.Equal(got), "balance %s, want %s", got, total)
	}
}

func TestLedger_SeedingIsIdempotent(t *testing.T) {
	ctx := context.Background()

	t.Run("sequential", func(t *testing.T) {
		l, _, rec := newTestLedger(t)
		for i := 0; i < 5; i++ {
			methods, err := l.ListMethods(ctx)
			require.NoError(t, err)
			require.Len(t, methods, 1)
			assert.Equal(t, core.DefaultMethodName, methods[0].Name)
		}
		assert.Equal(t, []events.Kind{events.MethodCreated}, rec.kinds())
	})

	t.Run("concurrent", func(t *testing.T) {
		l, store, _ := newTestLedger(t)
		var g errgroup.Group
		for i := 0; i < 20; i++ {
			g.Go(func() error {
				_, err := l.ListMethods(ctx)
				return err
			})
		}
		require.NoError(t, g.Wait())

		methods, err := store.ListMethods(ctx)
		require.NoError(t, err)
		assert.Len(t, methods, 1)
	})

	t.Run("existing methods are not seeded over", func(t *testing.T) {
		l := NewLedger(memory.NewWithMethods("Card"), WithLogger(log.Discard()))
		methods, err := l.ListMethods(ctx)
		require.NoError(t, err)
		require.Len(t, methods, 1)
		assert.Equal(t, "Card", methods[0].Name)

		_, err = l.AddTransaction(ctx, req(core.Earning, "1", "Gift", "Cash"))
		assert.ErrorIs(t, err, core.ErrMethodNotFound)
	})
}

func TestLedger_AddMethod(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	require.NoError(t, l.Init(ctx))

	card, err := l.AddMethod(ctx, "  Card ")
	require.NoError(t, err)
	assert.Equal(t, "Card", card.Name)

	_, err = l.AddMethod(ctx, "Card")
	assert.ErrorIs(t, err, core.ErrDuplicateMethod)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = l.AddMethod(ctx, "   ")
	assert.ErrorIs(t, err, core.ErrEmptyMethodName)

	_, err = l.AddMethod(ctx, "card")
	assert.NoError(t, err, "names are case-sensitive")

	_, err = l.AddTransaction(ctx, req(core.Earning, "5", "Refund", "Card"))
	require.NoError(t, err)

	assert.Equal(t, []events.Kind{
		events.MethodCreated,
		events.MethodCreated,
		events.MethodCreated,
		events.TransactionCreated,
	}, rec.kinds())
}

func TestLedger_AddMethodSeedsDefaultFirst(t *testing.T) {
	ctx := context.Background()

	t.Run("other method", func(t *testing.T) {
		l, store, rec := newTestLedger(t)
		_, err := l.AddMethod(ctx, "Card")
		require.NoError(t, err)

		methods, err := store.ListMethods(ctx)
		require.NoError(t, err)
		require.Len(t, methods, 2)
		assert.Equal(t, core.DefaultMethodName, methods[0].Name)
		assert.Equal(t, "Card", methods[1].Name)
		assert.Equal(t, []events.Kind{events.MethodCreated, events.MethodCreated}, rec.kinds())

		_, err = l.AddTransaction(ctx, req(core.Earning, "10", "Gift", "Cash"))
		assert.NoError(t, err)
	})

	t.Run("default name", func(t *testing.T) {
		l, store, _ := newTestLedger(t)
		_, err := l.AddMethod(ctx, core.DefaultMethodName)
		assert.ErrorIs(t, err, core.ErrDuplicateMethod)

		methods, err := store.ListMethods(ctx)
		require.NoError(t, err)
		assert.Len(t, methods, 1)
	})
}

func TestLedger_MaximalEarningKeepsBalanceExact(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	for i := 0; i < 3; i++ {
		_, err := l.AddTransaction(ctx, TransactionRequest{Type: core.Earning, Amount: core.MaxAmount, Description: "Lottery", MethodName: "Cash"})
		require.NoError(t, err)
	}
	bal, err := l.AvailableBalance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Equal(core.MaxAmount.Mul(decimal.NewFromInt(3))), "balance %s", bal)
}

func TestLedger_AddValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		req     TransactionRequest
		wantErr error
	}{
		{"zero amount", req(core.Earning, "0", "Salary", "Cash"), core.ErrInvalidAmount},
		{"negative amount", req(core.Earning, "-5", "Salary", "Cash"), core.ErrInvalidAmount},
		{"sub-cent amount", req(core.Earning, "0.001", "Salary", "Cash"), core.ErrInvalidAmount},
		{"amount above maximum", req(core.Earning, "10000000000000", "Lottery", "Cash"), core.ErrInvalidAmount},
		{"amount beyond int64 cents", req(core.Earning, "184467440737095517.16", "Lottery", "Cash"), core.ErrInvalidAmount},
		{"empty description", req(core.Earning, "5", "", "Cash"), core.ErrEmptyDescription},
		{"blank description", req(core.Earning, "5", "   ", "Cash"), core.ErrEmptyDescription},
		{"invalid type", req("Transfer", "5", "Salary", "Cash"), core.ErrInvalidType},
		{"unknown method", req(core.Earning, "5", "Salary", "Bitcoin"), core.ErrMethodNotFound},
		{"unknown method expense", req(core.Expense, "5", "Coffee", "Bitcoin"), core.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, rec := newTestLedger(t)
			_, err := l.AddTransaction(ctx, tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			entries, err := l.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, entries)
			for _, k := range rec.kinds() {
				assert.NotEqual(t, events.TransactionCreated, k)
			}
		})
	}
}

func TestLedger_UpdateDoesNotRecheckFunds(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	earning, err := l.AddTransaction(ctx, req(core.Earning, "50", "Salary", "Cash"))
	require.NoError(t, err)
	expense, err := l.AddTransaction(ctx, req(core.Expense, "20", "Food", "Cash"))
	require.NoError(t, err)

	updated, err := l.UpdateTransaction(ctx, expense.ID, req(core.Expense, "80", " Food & drinks ", "Cash"))
	require.NoError(t, err)
	assert.Equal(t, "Food & drinks", updated.Description)
	assert.True(t, expense.Timestamp.Equal(updated.Timestamp))
	assert.Equal(t, "-30.00", balance(t, l))

	_, err = l.UpdateTransaction(ctx, earning.ID, req(core.Earning, "0", "Salary", "Cash"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = l.UpdateTransaction(ctx, 999, req(core.Earning, "1", "Ghost", "Cash"))
	assert.ErrorIs(t, err, core.ErrTransactionNotFound)

	assert.Contains(t, rec.kinds(), events.TransactionUpdated)
}

func TestLedger_Delete(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	tr, err := l.AddTransaction(ctx, req(core.Earning, "10", "Gift", "Cash"))
	require.NoError(t, err)

	require.NoError(t, l.DeleteTransaction(ctx, tr.ID))
	assert.ErrorIs(t, l.DeleteTransaction(ctx, tr.ID), core.ErrTransactionNotFound)

	entries, err := l.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	kinds := rec.kinds()
	assert.Equal(t, events.TransactionDeleted, kinds[len(kinds)-1])
	rec.mu.Lock()
	deleted := rec.events[len(rec.events)-1]
	rec.mu.Unlock()
	assert.Equal(t, tr.ID, deleted.TransactionID)
	assert.Equal(t, "Gift", deleted.Description)
}

func TestLedger_BreakdownByDescriptionReturnsCopies(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	_, err := l.AddTransaction(ctx, req(core.Earning, "100", "Salary", "Cash"))
	require.NoError(t, err)

	fresh, err := l.BreakdownByDescription(ctx, core.Earning)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	fresh[0].Description = "tampered"

	cached, err := l.BreakdownByDescription(ctx, core.Earning)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "Salary", cached[0].Description)
	cached[0].Description = "tampered again"

	again, err := l.BreakdownByDescription(ctx, core.Earning)
	require.NoError(t, err)
	assert.Equal(t, "Salary", again[0].Description)
}

func TestLedger_Breakdowns(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	byType, err := l.BreakdownByType(ctx)
	require.NoError(t, err)
	require.Len(t, byType, 2)
	assert.Equal(t, core.Earning, byType[0].Type)
	assert.True(t, byType[1].Amount.IsZero())

	_, err = l.AddTransaction(ctx, req(core.Earning, "100", "Salary", "Cash"))
	require.NoError(t, err)
	_, err = l.AddTransaction(ctx, req(core.Expense, "5", "Coffee", "Cash"))
	require.NoError(t, err)

	first, err := l.BreakdownByDescription(ctx, core.Expense)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second coffee must show up even though the first result was cached.
	_, err = l.AddTransaction(ctx, req(core.Expense, "7", "Coffee", "Cash"))
	require.NoError(t, err)
	second, err := l.BreakdownByDescription(ctx, core.Expense)
	require.NoError(t, err)
	require.Len(t, second, 2, "duplicate descriptions are not merged")
	assert.Equal(t, "7.00", core.FormatAmount(second[0].Amount))

	_, err = l.BreakdownByDescription(ctx, "Savings")
	assert.ErrorIs(t, err, core.ErrInvalidType)

	byType, err = l.BreakdownByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100.00", core.FormatAmount(byType[0].Amount))
	assert.Equal(t, "12.00", core.FormatAmount(byType[1].Amount))

	summary, err := l.Summary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary.Entries, 3)
	assert.Equal(t, "88.00", core.FormatAmount(summary.Available))
}

func TestLedger_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	rec.err = errors.New("broker down")

	_, err := l.AddTransaction(ctx, req(core.Earning, "10", "Gift", "Cash"))
	require.NoError(t, err)
	assert.Equal(t, "10.00", balance(t, l))
}

func TestLedger_StorageErrorLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New()}
	l := NewLedger(store, WithLogger(log.Discard()))
	_, err := l.AddTransaction(ctx, req(core.Earning, "100", "Salary", "Cash"))
	require.NoError(t, err)

	store.failCreate.Store(true)
	_, err = l.AddTransaction(ctx, req(core.Earning, "5", "Bonus", "Cash"))
	assert.ErrorIs(t, err, core.ErrStorage)
	store.failCreate.Store(false)
	assert.Equal(t, "100.00", balance(t, l))

	store.failTotals.Store(true)
	_, err = l.AddTransaction(ctx, req(core.Expense, "5", "Coffee", "Cash"))
	assert.ErrorIs(t, err, core.ErrStorage)
	_, err = l.AvailableBalance(ctx)
	assert.ErrorIs(t, err, core.ErrStorage)
	store.failTotals.Store(false)

	entries, err := l.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedger_SQLiteConcurrentExpenses(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	l := NewLedger(repo, WithLogger(log.Discard()))
	t.Cleanup(func() { l.Close() })

	require.NoError(t, l.Init(ctx))
	_, err = l.AddTransaction(ctx, req(core.Earning, "100", "Salary", "Cash"))
	require.NoError(t, err)

	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := l.AddTransaction(ctx, req(core.Expense, "60", "Rent", "Cash"))
			if err == nil {
				ok.Add(1)
				return nil
			}
			if errors.Is(err, core.ErrInsufficientFunds) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, "40.00", balance(t, l))

	methods, err := l.ListMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}
