package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budget/internal/core"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x07c", "abc"},
		{"line1\nline2\ttab", "line1\nline2\ttab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string", `{"amount":"12,50"}`, "12,50"},
		{"number", `{"amount":12.5}`, "12.5"},
		{"null", `{"amount":null}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p transactionPayload
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if err := decodeJSON(httptest.NewRecorder(), r, &p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if string(p.Amount) != tt.want {
				t.Fatalf("amount=%q want %q", p.Amount, tt.want)
			}
		})
	}
}

func TestTransactionPayloadToRequest(t *testing.T) {
	p := transactionPayload{Type: " earning ", Amount: "12,345", Description: " Salary\x00 ", Method: " Cash "}
	req, err := p.toRequest()
	if err != nil {
		t.Fatalf("toRequest: %v", err)
	}
	if req.Type != core.Earning {
		t.Errorf("type=%q", req.Type)
	}
	if core.FormatAmount(req.Amount) != "12.35" {
		t.Errorf("amount=%s", req.Amount)
	}
	if req.Description != "Salary" || req.MethodName != "Cash" {
		t.Errorf("description=%q method=%q", req.Description, req.MethodName)
	}

	// Unknown types are left for the service to reject.
	req, err = transactionPayload{Type: "Gift", Amount: "1"}.toRequest()
	if err != nil {
		t.Fatalf("toRequest: %v", err)
	}
	if req.Type.Validate() == nil {
		t.Error("expected invalid type to pass through")
	}

	_, err = transactionPayload{Type: "Expense", Amount: "0"}.toRequest()
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err=%v", err)
	}
}

func TestDecodeJSONLimits(t *testing.T) {
	big := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	var p transactionPayload
	err := decodeJSON(httptest.NewRecorder(), r, &p)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	var m methodPayload
	if err := decodeJSON(httptest.NewRecorder(), r, &m); !errors.Is(err, errMalformedBody) {
		t.Fatalf("expected malformed body, got %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrEmptyDescription, http.StatusUnprocessableEntity},
		{core.ErrConfirmation, http.StatusUnprocessableEntity},
		{core.ErrMethodNotFound, http.StatusNotFound},
		{core.ErrInsufficientFunds, http.StatusConflict},
		{core.ErrNoSelection, http.StatusConflict},
		{core.StorageError("insert", errors.New("disk full")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
