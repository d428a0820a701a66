package services

import (
	"context"
	"fmt"

	"budget/internal/core"
	"budget/internal/storage"
)

// PaymentMethodRegistry owns the named payment methods.
// Seeding is not synchronized here; Ledger runs it under its write lock.
type PaymentMethodRegistry struct {
	store storage.MethodStore
}

func NewPaymentMethodRegistry(store storage.MethodStore) *PaymentMethodRegistry {
	return &PaymentMethodRegistry{store: store}
}

func (r *PaymentMethodRegistry) List(ctx context.Context) ([]core.PaymentMethod, error) {
	return r.store.ListMethods(ctx)
}

// EnsureDefault seeds the "Cash" method into an empty registry and returns
// the resulting methods. seeded is the created method, or nil.
func (r *PaymentMethodRegistry) EnsureDefault(ctx context.Context) (methods []core.PaymentMethod, seeded *core.PaymentMethod, err error) {
	methods, err = r.store.ListMethods(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(methods) > 0 {
		return methods, nil, nil
	}

	m, err := r.store.CreateMethod(ctx, core.DefaultMethodName)
	if err != nil {
		return nil, nil, fmt.Errorf("seed default payment method: %w", err)
	}
	return []core.PaymentMethod{m}, &m, nil
}

// Add validates name and persists a new method.
func (r *PaymentMethodRegistry) Add(ctx context.Context, name string) (core.PaymentMethod, error) {
	name, err := core.ValidateMethodName(name)
	if err != nil {
		return core.PaymentMethod{}, err
	}
	return r.store.CreateMethod(ctx, name)
}

// Resolve returns the id of the method called name (exact match).
func (r *PaymentMethodRegistry) Resolve(ctx context.Context, name string) (int64, error) {
	m, err := r.store.FindMethodByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}
