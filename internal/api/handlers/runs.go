package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/invoice-reconciler/internal/api/dto"
	"github.com/eshaffer321/invoice-reconciler/internal/application/service"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// RunsHandler handles reconciliation run requests.
type RunsHandler struct {
	*Base
	reconciler *service.ReconcileService
}

// NewRunsHandler creates a new runs handler. reconciler may be nil for a
// read-only server; Start then answers 503.
func NewRunsHandler(repo storage.Repository, reconciler *service.ReconcileService) *RunsHandler {
	return &RunsHandler{
		Base:       NewBase(repo),
		reconciler: reconciler,
	}
}

// Start handles POST /api/reconcile/run - runs matching synchronously.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		h.WriteError(w, http.StatusServiceUnavailable, dto.UnavailableError("reconciliation is disabled"))
		return
	}

	run, err := h.reconciler.Run(r.Context(), Actor(r))
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

// List handles GET /api/runs - returns recent runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", dto.DefaultRunListLimit)

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if run == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

// toRunResponse converts a storage RunRecord to an API response.
func toRunResponse(run storage.RunRecord) dto.RunResponse {
	response := dto.RunResponse{
		ID:               run.ID,
		Actor:            run.Actor,
		StartedAt:        run.StartedAt.UTC().Format(time.RFC3339),
		Status:           run.Status,
		RemovedLinks:     run.RemovedLinks,
		ExactLinks:       run.ExactLinks,
		FuzzyLinks:       run.FuzzyLinks,
		PartialLinks:     run.PartialLinks,
		OverpaymentLinks: run.OverpaymentLinks,
		ErrorMessage:     run.ErrorMessage,
	}
	if run.CompletedAt != nil {
		response.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	return response
}
