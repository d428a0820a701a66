package storage

import (
	"context"

	"budget/internal/core"
)

// Ports implemented by every persistence adapter. Implementations make each
// call atomic: a failed call leaves no partial write behind.
type (
	MethodStore interface {
		// ListMethods returns all payment methods ordered by id.
		ListMethods(ctx context.Context) ([]core.PaymentMethod, error)
		// CreateMethod fails with core.ErrDuplicateMethod when name is taken.
		CreateMethod(ctx context.Context, name string) (core.PaymentMethod, error)
		// FindMethodByName fails with core.ErrMethodNotFound.
		FindMethodByName(ctx context.Context, name string) (core.PaymentMethod, error)
	}

	TransactionStore interface {
		// CreateTransaction assigns the id (and the timestamp when zero).
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Entry, error)
		// UpdateTransaction overwrites the mutable fields, never id or timestamp.
		UpdateTransaction(ctx context.Context, id int64, f core.TransactionFields) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error
		// ListEntries returns the joined view, newest first.
		ListEntries(ctx context.Context) ([]core.Entry, error)
	}

	AggregateReader interface {
		// Totals sums both types; missing sums are zero.
		Totals(ctx context.Context) (core.Totals, error)
		// DescriptionBreakdown returns one row per transaction of type t, newest first.
		DescriptionBreakdown(ctx context.Context, t core.TransactionType) ([]core.DescriptionAmount, error)
	}

	Store interface {
		MethodStore
		TransactionStore
		AggregateReader
		Close() error
	}
)
