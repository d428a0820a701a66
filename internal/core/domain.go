package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Earning TransactionType = "Earning"
	Expense TransactionType = "Expense"
)

// DefaultMethodName is the payment method seeded into an empty registry.
const DefaultMethodName = "Cash"

const (
	maxDescriptionLen = 200
	maxMethodNameLen  = 100
)

type (
	TransactionType string

	PaymentMethod struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Transaction struct {
		ID              int64           `json:"id"`
		Type            TransactionType `json:"type"`
		Amount          decimal.Decimal `json:"amount"`
		Description     string          `json:"description"`
		PaymentMethodID int64           `json:"payment_method_id"`
		Timestamp       time.Time       `json:"timestamp"`
	}

	// Entry is a transaction joined with the name of its payment method.
	Entry struct {
		Transaction
		MethodName string `json:"method"`
	}

	// TransactionFields holds the mutable part of a transaction.
	TransactionFields struct {
		Type            TransactionType
		Amount          decimal.Decimal
		Description     string
		PaymentMethodID int64
	}
)

// TransactionTypes lists every type in display order.
func TransactionTypes() []TransactionType {
	return []TransactionType{Earning, Expense}
}

func (t TransactionType) String() string {
	return string(t)
}

func (t TransactionType) Validate() error {
	switch t {
	case Earning, Expense:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}
}

// ParseTransactionType accepts "Earning" or "Expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "earning":
		return Earning, nil
	case "expense":
		return Expense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// ValidateDescription trims s and returns it if it is an acceptable description.
func ValidateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyDescription
	}
	if utf8.RuneCountInString(s) > maxDescriptionLen {
		return "", ErrDescriptionTooLong
	}
	return s, nil
}

// ValidateMethodName trims s and returns it if it is an acceptable method name.
func ValidateMethodName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyMethodName
	}
	if utf8.RuneCountInString(s) > maxMethodNameLen {
		return "", ErrMethodNameTooLong
	}
	return s, nil
}

func (f TransactionFields) Validate() error {
	if err := f.Type.Validate(); err != nil {
		return err
	}
	if err := ValidateAmount(f.Amount); err != nil {
		return err
	}
	if _, err := ValidateDescription(f.Description); err != nil {
		return err
	}
	if f.PaymentMethodID <= 0 {
		return fmt.Errorf("%w: payment method id %d", ErrValidation, f.PaymentMethodID)
	}
	return nil
}

func (t Transaction) Validate() error {
	return t.Fields().Validate()
}

// Fields returns the mutable part of t.
func (t Transaction) Fields() TransactionFields {
	return TransactionFields{
		Type:            t.Type,
		Amount:          t.Amount,
		Description:     t.Description,
		PaymentMethodID: t.PaymentMethodID,
	}
}

// Apply overwrites the mutable fields of t, leaving ID and Timestamp intact.
func (t Transaction) Apply(f TransactionFields) Transaction {
	t.Type = f.Type
	t.Amount = f.Amount
	t.Description = f.Description
	t.PaymentMethodID = f.PaymentMethodID
	return t
}
