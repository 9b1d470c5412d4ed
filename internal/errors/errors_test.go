package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsSetStableCodeAndHTTPStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    *ServiceError
		code   Code
		status int
	}{
		{"validation", Validation("bad input", nil), CodeValidation, http.StatusBadRequest},
		{"notfound", NotFound("consent", "c-1"), CodeNotFound, http.StatusNotFound},
		{"conflict", Conflict("etag mismatch"), CodeConflict, http.StatusPreconditionFailed},
		{"unauthorized", Unauthorized("missing key"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("wrong tenant"), CodeForbidden, http.StatusForbidden},
		{"vendorupstream", VendorUpstream(500, "boom"), CodeVendorUpstream, http.StatusBadGateway},
		{"notsupported", NotSupported("bokio", "journals"), CodeNotSupported, http.StatusBadRequest},
		{"notconfigured", NotConfigured("visma"), CodeNotConfigured, http.StatusNotImplemented},
		{"ratelimited", RateLimited(), CodeRateLimited, http.StatusTooManyRequests},
		{"internal", Internal("boom", errors.New("cause")), CodeInternal, http.StatusInternalServerError},
		{"decryptfailed", DecryptFailed(errors.New("cause")), CodeDecryptFailed, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Code, c.name)
		assert.Equal(t, c.status, c.err.HTTPStatus, c.name)
	}
}

func TestVendorUpstreamTruncatesOversizedBody(t *testing.T) {
	body := make([]byte, 4096)
	for i := range body {
		body[i] = 'x'
	}
	err := VendorUpstream(502, string(body))
	assert.Len(t, err.Details["details"], 2048)
}

func TestAsExtractsServiceErrorFromWrappedChain(t *testing.T) {
	base := Internal("wrap me", errors.New("root cause"))
	wrapped := fmt.Errorf("outer: %w", base)

	se, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, se.Code)
}

func TestAsReturnsFalseForPlainErrors(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestHTTPStatusFallsBackTo500ForUnrecognizedErrors(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Wrap(Code("X"), http.StatusConflict, "m", nil)))
}

func TestErrorMessageIncludesWrappedCause(t *testing.T) {
	err := Internal("operation failed", errors.New("disk full"))
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "operation failed")
}

func TestUnwrapExposesUnderlyingCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Internal("wrap", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWithDetailChainsAndOverwritesByKey(t *testing.T) {
	err := New(CodeValidation, http.StatusBadRequest, "bad").
		WithDetail("field", "email").
		WithDetail("field", "phone")
	assert.Equal(t, "phone", err.Details["field"])
}
