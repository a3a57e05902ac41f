package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"tesouraria/internal/core"
	"tesouraria/internal/intake"
	"tesouraria/internal/log"
)

type webhookResponse struct {
	Status intake.Outcome `json:"status"`
}

// handleWebhook acknowledges every gateway delivery with 200 so the gateway
// stops retrying. Only a missing gateway configuration answers 500.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	if s.deps.Guard == nil || !s.deps.Guard.Configured() {
		logger.ErrorContext(r.Context(), "Webhook received without gateway credentials")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: core.ErrNotConfigured.Error()})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.WarnContext(r.Context(), "Unreadable webhook body", log.FieldError, err)
		writeJSON(w, http.StatusOK, webhookResponse{Status: intake.OutcomeIgnored})
		return
	}

	n, err := intake.ParseNotification(body, r.URL.Query())
	if err != nil {
		logger.WarnContext(r.Context(), "Malformed webhook body, falling back to query parameters", log.FieldError, err)
	}

	// The gateway may hang up before we finish; the ingest still completes.
	outcome, err := s.deps.Guard.Ingest(context.WithoutCancel(r.Context()), n)
	if err != nil {
		if errors.Is(err, core.ErrNotConfigured) {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: outcome})
}
