package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger matches exactly one of these
// through errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds, please add funds")
	ErrNoSelection       = errors.New("no transaction selected")
	ErrStorage           = errors.New("storage error")
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive and at most %s", ErrValidation, FormatAmount(MaxAmount))
	ErrInvalidType        = fmt.Errorf("%w: invalid transaction type", ErrValidation)
	ErrEmptyDescription   = fmt.Errorf("%w: description is required", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, maxDescriptionLen)
	ErrEmptyMethodName    = fmt.Errorf("%w: payment method name is required", ErrValidation)
	ErrMethodNameTooLong  = fmt.Errorf("%w: payment method name too long (max %d characters)", ErrValidation, maxMethodNameLen)
	ErrDuplicateMethod    = fmt.Errorf("%w: payment method already exists", ErrValidation)
	ErrConfirmation       = fmt.Errorf("%w: delete confirmation missing or stale", ErrValidation)

	ErrMethodNotFound      = fmt.Errorf("payment method %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
)

// StorageError marks err as a persistence failure of operation op.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorage, err))
}

// Error type names, shared with structured logs.
const (
	ErrorTypeValidation        = "validation_error"
	ErrorTypeNotFound          = "not_found_error"
	ErrorTypeInsufficientFunds = "insufficient_funds_error"
	ErrorTypeNoSelection       = "no_selection_error"
	ErrorTypeStorage           = "database_error"
	ErrorTypeInternal          = "internal_error"
)

// ErrorType classifies err by kind.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return ErrorTypeInsufficientFunds
	case errors.Is(err, ErrNoSelection):
		return ErrorTypeNoSelection
	case errors.Is(err, ErrStorage):
		return ErrorTypeStorage
	default:
		return ErrorTypeInternal
	}
}
