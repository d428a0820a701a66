package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"budget/internal/core"
	"budget/internal/services"
)

const maxBodyBytes = 64 << 10

var errMalformedBody = fmt.Errorf("%w: malformed request body", core.ErrValidation)

// flexString decodes a JSON string or number as its literal text, so amounts
// can be sent either as 12.5 or as "12,50".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type transactionPayload struct {
	Type        string     `json:"type"`
	Amount      flexString `json:"amount"`
	Description string     `json:"description"`
	Method      string     `json:"method"`
}

// toRequest parses the payload fields into a TransactionRequest. Only the
// amount is rejected here; an unknown type is passed through so the service
// reports validation failures in its own order.
func (p transactionPayload) toRequest() (services.TransactionRequest, error) {
	amount, err := core.ParseAmount(sanitizeInput(string(p.Amount)))
	if err != nil {
		return services.TransactionRequest{}, err
	}
	raw := sanitizeInput(p.Type)
	typ, err := core.ParseTransactionType(raw)
	if err != nil {
		typ = core.TransactionType(raw)
	}
	return services.TransactionRequest{
		Type:        typ,
		Amount:      amount,
		Description: sanitizeInput(p.Description),
		MethodName:  sanitizeInput(p.Method),
	}, nil
}

type methodPayload struct {
	Name string `json:"name"`
}

// decodeJSON reads at most maxBodyBytes of r's body into v. Unknown fields
// and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body exceeds %d bytes", core.ErrValidation, maxErr.Limit)
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errMalformedBody
	}
	return nil
}

func decodeTransaction(w http.ResponseWriter, r *http.Request) (services.TransactionRequest, error) {
	var p transactionPayload
	if err := decodeJSON(w, r, &p); err != nil {
		return services.TransactionRequest{}, err
	}
	return p.toRequest()
}
