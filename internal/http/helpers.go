package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"budget/internal/core"
	"budget/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInsufficientFunds), errors.Is(err, core.ErrNoSelection):
		return http.StatusConflict
	case errors.Is(err, core.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err and writes it as {error, type}. Storage and internal
// failures are reported without their driver detail.
func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	log.FromContext(ctx).LogErr(ctx, msg, err)

	status := statusFor(err)
	text := err.Error()
	if status >= http.StatusInternalServerError {
		text = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: text, Type: core.ErrorType(err)})
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ErrTransactionNotFound
	}
	return id, nil
}
