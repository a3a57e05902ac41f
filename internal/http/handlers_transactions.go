package http

import (
	"net/http"
	"strings"

	"tesouraria/internal/core"
	"tesouraria/internal/services"
)

// transactionAction is the combined POST /api/transactions body older
// clients send: action "confirm" with {id, type} or "manual_add" with the
// manual transaction fields.
type transactionAction struct {
	Action string `json:"action"`
	ID     int64  `json:"id"`
	services.ManualTransactionRequest
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseLimit(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.deps.Ledger.ListTransactions(r.Context(), query.Get("status"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleManualTransaction(w http.ResponseWriter, r *http.Request) {
	var req services.ManualTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.recordManual(w, r, req)
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req services.ConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.confirm(w, r, id, req)
}

func (s *Server) handleTransactionAction(w http.ResponseWriter, r *http.Request) {
	var req transactionAction
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "confirm":
		if req.ID < 1 {
			writeError(w, r, &core.ValidationError{Field: "id", Reason: "expected a positive integer"})
			return
		}
		s.confirm(w, r, req.ID, services.ConfirmRequest{Category: req.Category})
	case "manual_add":
		s.recordManual(w, r, req.ManualTransactionRequest)
	default:
		writeError(w, r, &core.ValidationError{Field: "action", Reason: "expected confirm or manual_add"})
	}
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request, id int64, req services.ConfirmRequest) {
	tx, err := s.deps.Ledger.ConfirmTransaction(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) recordManual(w http.ResponseWriter, r *http.Request, req services.ManualTransactionRequest) {
	tx, err := s.deps.Ledger.RecordManualTransaction(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}
