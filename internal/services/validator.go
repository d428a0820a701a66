package services

import (
	"context"

	"github.com/shopspring/decimal"

	"budget/internal/storage"
)

// BalanceValidator authorizes expenses against the available balance.
// Callers hold the ledger lock so that a check and the insert it guards are atomic.
type BalanceValidator struct {
	totals storage.AggregateReader
}

func NewBalanceValidator(totals storage.AggregateReader) *BalanceValidator {
	return &BalanceValidator{totals: totals}
}

// AvailableBalance is total earnings minus total expenses; zero on an empty ledger.
func (v *BalanceValidator) AvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	t, err := v.totals.Totals(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Available(), nil
}

func (v *BalanceValidator) CanAfford(ctx context.Context, amount decimal.Decimal) (bool, error) {
	available, err := v.AvailableBalance(ctx)
	if err != nil {
		return false, err
	}
	return available.GreaterThanOrEqual(amount), nil
}
