package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assessx/internal/catalog"
	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/logging"
	"github.com/JonMunkholm/assessx/internal/metrics"
)

// handleSearchTemplates lists templates whose name partially matches ?name=.
func (s *Server) handleSearchTemplates(w http.ResponseWriter, r *http.Request) {
	records, err := s.catalog.SearchByName(r.Context(), strings.TrimSpace(r.URL.Query().Get("name")))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": summarize(records)})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	rec, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCheckName answers whether a name is already used, ignoring case.
func (s *Server) handleCheckName(w http.ResponseWriter, r *http.Request) {
	var req checkNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	exists, err := catalog.Exists(r.Context(), s.catalog, req.Name)
	if err != nil {
		metrics.ObserveNameCheck(metrics.ResultError)
		respondError(w, r, err, 0)
		return
	}
	if exists {
		metrics.ObserveNameCheck(metrics.ResultTaken)
	} else {
		metrics.ObserveNameCheck(metrics.ResultOK)
	}
	writeJSON(w, http.StatusOK, checkNameResponse{Name: strings.TrimSpace(req.Name), Exists: exists})
}

// handleExportTemplate downloads a stored template as CSV or XLSX.
func (s *Server) handleExportTemplate(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if err := validate.Var(format, "oneof=csv xlsx"); err != nil {
		respondError(w, r, fmt.Errorf("%w: %q", errExportFormat, format), 0)
		return
	}

	rec, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	var (
		body        []byte
		fileName    string
		contentType string
	)
	switch format {
	case "xlsx":
		var buf bytes.Buffer
		if err := exchange.ExportXLSX(&buf, rec.Template, rec.Tags, rec.KBs); err != nil {
			respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		body = buf.Bytes()
		fileName = exchange.ExportXLSXFileName(rec.Name)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		body = []byte(exchange.ExportCSV(rec.Template, rec.Tags, rec.KBs))
		fileName = exchange.ExportFileName(rec.Name)
		contentType = "text/csv; charset=utf-8"
	}

	metrics.ObserveExport(format)
	logging.FromContext(r.Context()).Info("template exported", "template_id", rec.ID, "format", format)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
