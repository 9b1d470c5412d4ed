package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAttachesRequestScopedFields(t *testing.T) {
	l := New("accounting-gateway", "debug", "json")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithTenantID(ctx, "tenant-1")
	ctx = WithVendor(ctx, "fortnox")
	ctx = WithConsentID(ctx, "consent-1")

	l.WithContext(ctx).Info("test event")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "tenant-1", entry["tenant_id"])
	assert.Equal(t, "fortnox", entry["vendor"])
	assert.Equal(t, "consent-1", entry["consent_id"])
	assert.Equal(t, "accounting-gateway", entry["service"])
}

func TestWithContextOmitsAbsentFields(t *testing.T) {
	l := New("accounting-gateway", "debug", "json")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithContext(context.Background()).Info("bare event")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, hasTrace := entry["trace_id"]
	assert.False(t, hasTrace)
}

func TestLogRequestIncludesStatusAndDuration(t *testing.T) {
	l := New("accounting-gateway", "debug", "json")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.LogRequest(context.Background(), "GET", "/api/v1/consents", 200, 0)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/v1/consents", entry["path"])
	assert.Equal(t, float64(200), entry["status_code"])
}

func TestLogVendorCallWarnsOnError(t *testing.T) {
	l := New("accounting-gateway", "debug", "json")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.LogVendorCall(context.Background(), "fortnox", "GET", "/invoices", 502, 0, assertError("upstream down"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "fortnox", entry["vendor"])
}

func TestNewParsesInvalidLevelAsInfo(t *testing.T) {
	l := New("accounting-gateway", "not-a-level", "json")
	assert.Equal(t, "info", l.GetLevel().String())
}

func TestNewTraceIDReturnsNonEmptyUniqueValues(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

type assertError string

func (e assertError) Error() string { return string(e) }
