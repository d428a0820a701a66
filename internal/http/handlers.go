package http

import (
	"net/http"

	"budget/internal/core"
	"budget/internal/services"
)

type selectionResponse struct {
	State       string      `json:"state"`
	Transaction *core.Entry `json:"transaction,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type balanceResponse struct {
	Available string `json:"available_balance"`
}

func (s *Server) handleListMethods(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	methods, err := svc.ListMethods(r.Context())
	if err != nil {
		writeError(w, r, "List payment methods failed", err)
		return
	}
	writeJSON(w, http.StatusOK, methods)
}

func (s *Server) handleAddMethod(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	var p methodPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, "Add payment method rejected", err)
		return
	}
	m, err := svc.AddMethod(r.Context(), sanitizeInput(p.Name))
	if err != nil {
		writeError(w, r, "Add payment method failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	sum, err := svc.Summary(r.Context())
	if err != nil {
		writeError(w, r, "Summary failed", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	req, err := decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, "Add transaction rejected", err)
		return
	}
	sum, err := svc.AddTransaction(r.Context(), req)
	if err != nil {
		writeError(w, r, "Add transaction failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, "Select rejected", err)
		return
	}
	entry, err := svc.SelectForEdit(r.Context(), id)
	if err != nil {
		writeError(w, r, "Select failed", err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{State: services.Editing.String(), Transaction: &entry})
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	resp := selectionResponse{State: svc.State().String()}
	if entry, ok := svc.Selection(); ok {
		resp.Transaction = &entry
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	svc.CancelEdit()
	writeJSON(w, http.StatusOK, selectionResponse{State: services.Idle.String()})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	req, err := decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, "Update transaction rejected", err)
		return
	}
	sum, err := svc.UpdateTransaction(r.Context(), req)
	if err != nil {
		writeError(w, r, "Update transaction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	token, err := svc.RequestDelete(r.Context())
	if err != nil {
		writeError(w, r, "Delete request failed", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	token := sanitizeInput(r.URL.Query().Get("token"))
	sum, err := svc.DeleteTransaction(r.Context(), token)
	if err != nil {
		writeError(w, r, "Delete transaction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	bal, err := svc.AvailableBalance(r.Context())
	if err != nil {
		writeError(w, r, "Balance failed", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Available: core.FormatAmount(bal)})
}

func (s *Server) handleBreakdownByType(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	totals, err := svc.BreakdownByType(r.Context())
	if err != nil {
		writeError(w, r, "Breakdown by type failed", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// handleBreakdownByDescription defaults to expenses when no type is given.
func (s *Server) handleBreakdownByDescription(w http.ResponseWriter, r *http.Request, svc *services.LedgerService) {
	typ := core.Expense
	if v := sanitizeInput(r.URL.Query().Get("type")); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			writeError(w, r, "Breakdown by description rejected", err)
			return
		}
		typ = t
	}
	parts, err := svc.BreakdownByDescription(r.Context(), typ)
	if err != nil {
		writeError(w, r, "Breakdown by description failed", err)
		return
	}
	if parts == nil {
		parts = []core.DescriptionAmount{}
	}
	writeJSON(w, http.StatusOK, parts)
}
