package services

import (
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// TransactionRequest carries the user-entered fields of an add or update.
type TransactionRequest struct {
	Type        core.TransactionType
	Amount      decimal.Decimal
	Description string
	MethodName  string
}

// normalize validates amount, description and type, in that order, and
// returns the request with its description trimmed.
func (r TransactionRequest) normalize() (TransactionRequest, error) {
	if err := core.ValidateAmount(r.Amount); err != nil {
		return r, err
	}
	desc, err := core.ValidateDescription(r.Description)
	if err != nil {
		return r, err
	}
	if err := r.Type.Validate(); err != nil {
		return r, err
	}
	r.Description = desc
	r.MethodName = strings.TrimSpace(r.MethodName)
	return r, nil
}

func (r TransactionRequest) fields(methodID int64) core.TransactionFields {
	return core.TransactionFields{
		Type:            r.Type,
		Amount:          r.Amount,
		Description:     r.Description,
		PaymentMethodID: methodID,
	}
}
