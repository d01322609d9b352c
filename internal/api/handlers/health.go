package handlers

import (
	"context"
	"net/http"

	"github.com/eshaffer321/invoice-reconciler/internal/api/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
	check func(ctx context.Context) error
}

// NewHealthHandler creates a new health handler. check may be nil; when set,
// a failing check reports the service as unavailable.
func NewHealthHandler(check func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{Base: &Base{}, check: check}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := dto.NewHealthResponse()
	if h.check != nil {
		if err := h.check(r.Context()); err != nil {
			response.Status = "unavailable"
			h.WriteJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}
	h.WriteJSON(w, http.StatusOK, response)
}
