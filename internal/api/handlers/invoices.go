package handlers

import (
	"net/http"

	"github.com/eshaffer321/invoice-reconciler/internal/api/dto"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// InvoicesHandler handles invoice HTTP requests.
type InvoicesHandler struct {
	*Base
}

// NewInvoicesHandler creates a new invoices handler.
func NewInvoicesHandler(repo storage.Repository) *InvoicesHandler {
	return &InvoicesHandler{Base: NewBase(repo)}
}

// List handles GET /api/invoices - returns a page of invoices.
// Supports ?status=PARTIALLY_PAID&limit=50&offset=0.
func (h *InvoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	params := ParseListParams(r)

	invoices, err := h.repo.ListInvoices(r.Context(), storage.ListFilter{
		Status: params.Status,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.InvoiceListResponse{
		Invoices: make([]dto.InvoiceResponse, 0, len(invoices)),
		Count:    len(invoices),
		Limit:    params.Limit,
		Offset:   params.Offset,
	}
	for _, inv := range invoices {
		response.Invoices = append(response.Invoices, toInvoiceResponse(inv))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/invoices/{id}.
func (h *InvoicesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid invoice ID"))
		return
	}

	inv, err := h.repo.GetInvoice(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if inv == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("invoice"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// Links handles GET /api/invoices/{id}/links - the invoice's links in creation order.
func (h *InvoicesHandler) Links(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid invoice ID"))
		return
	}

	links, err := h.repo.ListLinksByInvoice(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toLinkListResponse(links))
}
