package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/invoice-reconciler/internal/api/dto"
	"github.com/eshaffer321/invoice-reconciler/internal/application/ingest"
	"github.com/eshaffer321/invoice-reconciler/internal/application/service"
	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// ActorHeader names the caller recorded in the audit trail.
const ActorHeader = "X-Actor"

// Base provides shared functionality for all handlers.
type Base struct {
	repo storage.Repository
}

// NewBase creates a new base handler with the given repository.
func NewBase(repo storage.Repository) *Base {
	return &Base{repo: repo}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteServiceError maps a service error onto an API error and its status.
func (b *Base) WriteServiceError(w http.ResponseWriter, err error) {
	apiErr := ServiceError(err)
	b.WriteError(w, apiErr.HTTPStatus(), apiErr)
}

// ServiceError classifies a service error. Unknown errors are hidden behind
// a generic internal error.
func ServiceError(err error) dto.APIError {
	switch {
	case errors.Is(err, reconcile.ErrNotFound):
		return dto.NewAPIError(dto.ErrCodeNotFound, err.Error())
	case errors.Is(err, reconcile.ErrInvalidAmount),
		errors.Is(err, ingest.ErrEmptyFile),
		errors.Is(err, ingest.ErrMissingColumns):
		return dto.ValidationError(err.Error())
	case errors.Is(err, reconcile.ErrAlreadyRegistered), errors.Is(err, service.ErrRunInProgress):
		return dto.ConflictError(err.Error())
	default:
		return dto.InternalError()
	}
}

// Actor returns the caller named by the X-Actor header, or "" for the default.
func Actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseBoolParam parses a boolean query parameter with a default value.
func ParseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

// ParseListParams reads status, limit and offset query parameters.
func ParseListParams(r *http.Request) dto.ListParams {
	params := dto.DefaultListParams()
	params.Status = strings.ToUpper(r.URL.Query().Get("status"))
	params.Limit = ParseIntParam(r, "limit", params.Limit)
	params.Offset = ParseIntParam(r, "offset", params.Offset)
	if params.Limit <= 0 {
		params.Limit = dto.DefaultListParams().Limit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return params
}

// pathID parses a numeric URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func toInvoiceResponse(inv *reconcile.Invoice) dto.InvoiceResponse {
	return dto.InvoiceResponse{
		ID:            inv.ID,
		ExternalID:    inv.ExternalID,
		Reference:     inv.Reference,
		Amount:        inv.Amount.StringFixed(2),
		Date:          inv.Date.Format(reconcile.DateLayout),
		Description:   inv.Description,
		CustomerName:  inv.CustomerName,
		Status:        string(inv.Status),
		MatchedAmount: inv.MatchedAmount.StringFixed(2),
		Confidence:    inv.Confidence,
		Notes:         inv.Notes,
	}
}

func toTransactionResponse(tx *reconcile.BankTransaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:            tx.ID,
		ExternalID:    tx.ExternalID,
		Date:          tx.Date.Format(reconcile.DateLayout),
		Amount:        tx.Amount.StringFixed(2),
		Description:   tx.Description,
		Reference:     tx.Reference,
		Status:        string(tx.Status),
		MatchedAmount: tx.MatchedAmount.StringFixed(2),
	}
}

func toLinkResponse(l *reconcile.Link) dto.LinkResponse {
	return dto.LinkResponse{
		ID:            l.ID,
		InvoiceID:     l.InvoiceID,
		TransactionID: l.TransactionID,
		Amount:        l.Amount.StringFixed(2),
		MatchType:     string(l.MatchType),
		Confidence:    l.Confidence,
		CreatedAt:     l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toLinkListResponse(links []*reconcile.Link) dto.LinkListResponse {
	response := dto.LinkListResponse{
		Links: make([]dto.LinkResponse, 0, len(links)),
		Count: len(links),
	}
	for _, l := range links {
		response.Links = append(response.Links, toLinkResponse(l))
	}
	return response
}
