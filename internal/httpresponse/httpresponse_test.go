package httpresponse

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
)

func TestWriteErrorRendersServiceErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/consents/missing", nil)

	WriteError(w, r, gwerrors.NotFound("consent", "c1"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Error)
}

func TestWriteErrorWrapsUnknownErrorsAsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(w, r, assertError("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL", body.Error)
}

func TestDecodeJSONRejectsEmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	var v map[string]interface{}
	err := DecodeJSON(r, &v)
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeValidation, se.Code)
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	var v map[string]interface{}
	err := DecodeJSON(r, &v)
	require.Error(t, err)
}

func TestQueryIntFallsBackToDefault(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3", nil)
	assert.Equal(t, 3, QueryInt(r, "page", 1))
	assert.Equal(t, 50, QueryInt(r, "pageSize", 50))

	r2 := httptest.NewRequest(http.MethodGet, "/?page=notanumber", nil)
	assert.Equal(t, 1, QueryInt(r2, "page", 1))
}

func TestClientIPTrustsForwardedHeaderOnlyFromPrivatePeer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.5:54321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 192.168.1.5")
	assert.Equal(t, "203.0.113.9", ClientIP(r))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.RemoteAddr = "203.0.113.50:1234"
	r2.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "203.0.113.50", ClientIP(r2))
}

type assertError string

func (e assertError) Error() string { return string(e) }
