package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCanonicalPathReplacesLongIdentifiers(t *testing.T) {
	cases := map[string]string{
		"/":                                           "/",
		"/api/v1/consents":                            "/api/v1/consents",
		"/api/v1/consents/5f2e9d3a1b4c6e8f9a0b1c2d3e4f": "/api/v1/consents/:id",
		"/api/v1/connections/conn-0123456789abcdef":    "/api/v1/connections/:id",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Errorf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLooksLikeIDRequiresLengthAndDigit(t *testing.T) {
	if looksLikeID("sales-invoices") {
		t.Error("short lower-kebab route token should not look like an id")
	}
	if !looksLikeID("5f2e9d3a1b4c6e8f9a0b1c2d3e4f") {
		t.Error("long hex-like segment should look like an id")
	}
	if looksLikeID("aaaaaaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Error("long segment with no digit should not look like an id")
	}
}

func TestRecordVendorCallDefaultsEmptyLabels(t *testing.T) {
	RecordVendorCall("fortnox", "", "", 10*time.Millisecond)
}

func TestRecordSyncEntitiesSkipsNonPositiveCounts(t *testing.T) {
	RecordSyncEntities("fortnox", "invoice", 0)
	RecordSyncEntities("fortnox", "invoice", -1)
	RecordSyncEntities("fortnox", "invoice", 3)
}

func TestInstrumentHandlerRecordsStatusCode(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/consents", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
