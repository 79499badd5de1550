package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrQuotaExhausted.WithCause(stderrors.New("upstream 402")))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AI credits exhausted. Please add credits to continue.", body["error"])
	assert.Equal(t, "QUOTA_EXHAUSTED", body["code"])
	assert.NotContains(t, rec.Body.String(), "upstream 402")
}

func TestWriteError_WrappedAndUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("handler: %w", ErrForbidden))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	WriteError(rec, stderrors.New("secret internals"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret internals")
}

func TestWithDetail_DoesNotMutateBase(t *testing.T) {
	e := ErrBadRequest.WithDetail("type is required")
	assert.Equal(t, "type is required", e.Detail)
	assert.Empty(t, ErrBadRequest.Detail)
}
