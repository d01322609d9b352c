package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/invoice-reconciler/internal/api/dto"
	"github.com/eshaffer321/invoice-reconciler/internal/application/ingest"
)

// maxUploadBytes bounds a single CSV upload.
const maxUploadBytes = 32 << 20

// UploadHandler handles CSV uploads.
type UploadHandler struct {
	*Base
	importer *ingest.Service
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(importer *ingest.Service) *UploadHandler {
	return &UploadHandler{
		Base:     &Base{},
		importer: importer,
	}
}

// Upload handles POST /api/upload/{kind} where kind is ledger or statement.
// The CSV is read from a multipart "file" field, or from the raw body.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	kind, err := ingest.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("upload kind"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	body, cleanup, err := uploadedFile(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}
	defer cleanup()

	result, err := h.importer.Import(r.Context(), kind, body)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.UploadResponse{
		Kind:       string(result.Kind),
		Parsed:     result.Parsed,
		Imported:   result.Imported,
		Duplicates: result.Duplicates,
		Skipped:    result.Skipped,
		Message:    uploadMessage(kind),
	})
}

func uploadedFile(r *http.Request) (io.Reader, func(), error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

func uploadMessage(kind ingest.Kind) string {
	if kind == ingest.KindLedger {
		return "Ledger uploaded successfully"
	}
	return "Bank statement uploaded successfully"
}
