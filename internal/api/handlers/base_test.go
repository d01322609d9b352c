package handlers_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-reconciler/internal/api/dto"
	"github.com/eshaffer321/invoice-reconciler/internal/api/handlers"
	"github.com/eshaffer321/invoice-reconciler/internal/application/ingest"
	"github.com/eshaffer321/invoice-reconciler/internal/application/service"
	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

func TestBase_WriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("invoice 3: %w", reconcile.ErrNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"invalid amount", fmt.Errorf("link amount -1: %w", reconcile.ErrInvalidAmount), http.StatusBadRequest, dto.ErrCodeValidation},
		{"empty upload", ingest.ErrEmptyFile, http.StatusBadRequest, dto.ErrCodeValidation},
		{"duplicate", reconcile.ErrAlreadyRegistered, http.StatusConflict, dto.ErrCodeConflict},
		{"run in progress", service.ErrRunInProgress, http.StatusConflict, dto.ErrCodeConflict},
		{"anything else", errors.New("disk I/O error"), http.StatusInternalServerError, dto.ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			handlers.NewBase(nil).WriteServiceError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var apiErr dto.APIError
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}

	t.Run("internal errors are not leaked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.NewBase(nil).WriteServiceError(rec, errors.New("/var/db/secret.db: locked"))
		assert.NotContains(t, rec.Body.String(), "secret")
	})
}

func TestParseListParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/invoices?status=unpaid&limit=10&offset=20", nil)
	params := handlers.ParseListParams(req)
	assert.Equal(t, "UNPAID", params.Status)
	assert.Equal(t, 10, params.Limit)
	assert.Equal(t, 20, params.Offset)

	req = httptest.NewRequest(http.MethodGet, "/api/invoices?limit=-1&offset=-5", nil)
	params = handlers.ParseListParams(req)
	assert.Equal(t, dto.DefaultListParams().Limit, params.Limit)
	assert.Zero(t, params.Offset)
}

func TestActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, handlers.Actor(req))

	req.Header.Set(handlers.ActorHeader, "  carol ")
	assert.Equal(t, "carol", handlers.Actor(req))
}
