package handlers

import (
	"net/http"

	"github.com/eshaffer321/invoice-reconciler/internal/api/dto"
	"github.com/eshaffer321/invoice-reconciler/internal/application/service"
)

// OverridesHandler handles manual corrections.
type OverridesHandler struct {
	*Base
	overrides *service.OverrideService
}

// NewOverridesHandler creates a new overrides handler.
func NewOverridesHandler(overrides *service.OverrideService) *OverridesHandler {
	return &OverridesHandler{
		Base:      &Base{},
		overrides: overrides,
	}
}

// Link handles POST /api/override/link - creates a MANUAL_OVERRIDE link.
func (h *OverridesHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req dto.LinkRequest
	if err := decodeBody(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.InvoiceID <= 0 || req.TransactionID <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("invoice_id and transaction_id are required"))
		return
	}

	link, err := h.overrides.LinkManually(r.Context(), Actor(r), service.LinkRequest{
		InvoiceID:     req.InvoiceID,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Reason:        req.Reason,
	})
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, toLinkResponse(link))
}

// Unlink handles POST /api/override/unlink - removes the oldest link between a pair.
func (h *OverridesHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	var req dto.UnlinkRequest
	if err := decodeBody(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.InvoiceID <= 0 || req.TransactionID <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("invoice_id and transaction_id are required"))
		return
	}

	link, err := h.overrides.Unlink(r.Context(), Actor(r), req.InvoiceID, req.TransactionID, req.Reason)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toLinkResponse(link))
}

// Notes handles PUT /api/override/invoices/{id}/notes.
func (h *OverridesHandler) Notes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid invoice ID"))
		return
	}
	var req dto.NotesRequest
	if err := decodeBody(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	inv, err := h.overrides.AddInvoiceNotes(r.Context(), Actor(r), id, req.Notes, req.Reason)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toInvoiceResponse(inv))
}
