package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tesouraria/internal/core"
	"tesouraria/internal/log"
	"tesouraria/internal/services"
	"tesouraria/internal/statement"
)

const (
	formatPDF    = "pdf"
	formatText   = "text"
	formatJSON   = "json"
	formatSheets = "sheets"
)

type reportRequest struct {
	services.ReportRequest
	Format string `json:"format,omitempty"`
}

type sheetsExportResponse struct {
	Sheet   string       `json:"sheet"`
	Summary core.Summary `json:"summary"`
}

// handleReport compiles the closing statement of a month. The format comes
// from ?format= or the body and defaults to pdf.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = strings.ToLower(strings.TrimSpace(req.Format))
	}
	if format == "" {
		format = formatPDF
	}
	switch format {
	case formatPDF, formatText, formatJSON, formatSheets:
	default:
		writeError(w, r, &core.ValidationError{Field: "format", Reason: "expected pdf, text, json or sheets"})
		return
	}
	if format == formatSheets && s.deps.Exporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "sheets export is not configured"})
		return
	}

	doc, err := s.deps.Reports.Compile(r.Context(), req.ReportRequest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Statement compiled",
		log.FieldYear, doc.Summary.Period.Year,
		log.FieldMonth, int(doc.Summary.Period.Month),
		log.FieldFormat, format)

	switch format {
	case formatJSON:
		writeJSON(w, http.StatusOK, doc)
	case formatSheets:
		ref, err := s.deps.Exporter.ExportStatement(r.Context(), doc)
		if err != nil {
			writeError(w, r, fmt.Errorf("export statement: %w", err))
			return
		}
		writeJSON(w, http.StatusOK, sheetsExportResponse{Sheet: ref, Summary: doc.Summary})
	case formatText:
		s.writeRendered(w, r, doc, "text/plain; charset=utf-8", "txt", statement.RenderText)
	default:
		s.writeRendered(w, r, doc, "application/pdf", "pdf", statement.RenderPDF)
	}
}

// writeRendered buffers the rendering so a failure can still be reported as
// a JSON error.
func (s *Server) writeRendered(w http.ResponseWriter, r *http.Request, doc statement.Document, contentType, ext string,
	render func(io.Writer, statement.Document) error) {
	var buf bytes.Buffer
	if err := render(&buf, doc); err != nil {
		writeError(w, r, fmt.Errorf("render statement: %w", err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName(ext)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
