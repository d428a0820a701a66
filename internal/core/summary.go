package core

import "github.com/shopspring/decimal"

// TypeTotal is the total amount recorded for one transaction type.
type TypeTotal struct {
	Type   TransactionType `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// DescriptionAmount is one slice of the per-description breakdown.
// Descriptions are not merged: every transaction contributes its own entry.
type DescriptionAmount struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Totals holds the sums of both transaction types.
type Totals struct {
	Earnings decimal.Decimal `json:"earnings"`
	Expenses decimal.Decimal `json:"expenses"`
}

// Available returns earnings minus expenses.
func (t Totals) Available() decimal.Decimal {
	return t.Earnings.Sub(t.Expenses)
}

// ByType returns the totals as a breakdown in display order.
func (t Totals) ByType() []TypeTotal {
	return []TypeTotal{
		{Type: Earning, Amount: t.Earnings},
		{Type: Expense, Amount: t.Expenses},
	}
}

// Summary is what the presentation layer redraws after every change.
type Summary struct {
	Entries   []Entry         `json:"transactions"`
	Earnings  decimal.Decimal `json:"earnings"`
	Expenses  decimal.Decimal `json:"expenses"`
	Available decimal.Decimal `json:"available_balance"`
	ByType    []TypeTotal     `json:"breakdown_by_type"`
}

// NewSummary assembles a Summary from a listing and its totals.
func NewSummary(entries []Entry, totals Totals) Summary {
	if entries == nil {
		entries = []Entry{}
	}
	return Summary{
		Entries:   entries,
		Earnings:  totals.Earnings,
		Expenses:  totals.Expenses,
		Available: totals.Available(),
		ByType:    totals.ByType(),
	}
}
