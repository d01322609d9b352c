package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/invoice-reconciler/internal/api/dto"
	"github.com/eshaffer321/invoice-reconciler/internal/application/report"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// ReportsHandler serves the dashboard, the audit log and CSV exports.
type ReportsHandler struct {
	*Base
	reports *report.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(repo storage.Repository, reports *report.Service) *ReportsHandler {
	return &ReportsHandler{
		Base:    NewBase(repo),
		reports: reports,
	}
}

// Dashboard handles GET /api/dashboard.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}

// Audit handles GET /api/audit - newest first.
// Supports ?entity_type=Invoice&entity_id=3&limit=50.
func (h *ReportsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.repo.ListAudit(r.Context(), storage.AuditFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      ParseIntParam(r, "limit", dto.DefaultAuditListLimit),
	})
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.AuditListResponse{
		Entries: make([]dto.AuditEntryResponse, 0, len(entries)),
		Count:   len(entries),
	}
	for _, e := range entries {
		response.Entries = append(response.Entries, dto.AuditEntryResponse{
			ID:         e.ID,
			Actor:      e.Actor,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Reason:     e.Reason,
			Before:     e.Before,
			After:      e.After,
			Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Export handles GET /api/export/{report} - streams a CSV download.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	kind, err := report.ParseKind(chi.URLParam(r, "report"))
	if err != nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("report"))
		return
	}

	// Buffer so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.reports.Export(r.Context(), kind, &buf); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+kind.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
