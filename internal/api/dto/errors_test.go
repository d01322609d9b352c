package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFoundError("invoice").HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, ValidationError("bad").HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, BadRequestError("bad").HTTPStatus())
	assert.Equal(t, http.StatusConflict, ConflictError("busy").HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, UnavailableError("off").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, InternalError().HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, NewAPIError("teapot", "").HTTPStatus())
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "not_found: invoice not found", NotFoundError("invoice").Error())
}
