// Package httpresponse provides the shared JSON response/error envelope used
// by the middleware chain and the HTTP API layer, so both write the same
// canonical shape (spec.md §7) without importing one another.
package httpresponse

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/logging"
)

// ErrorBody is the canonical error envelope (spec.md §7).
type ErrorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"traceId,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError renders err as the canonical error envelope. Any error that
// isn't a *gwerrors.ServiceError is reported as an opaque 500 — callers are
// expected to only ever hand this function ServiceErrors or panics recovered
// upstream.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	se, ok := gwerrors.As(err)
	if !ok {
		se = gwerrors.Internal("unexpected error", err)
	}
	body := ErrorBody{
		Error:   string(se.Code),
		Message: se.Message,
		Details: se.Details,
		TraceID: logging.TraceIDFrom(r.Context()),
	}
	WriteJSON(w, se.HTTPStatus, body)
}

// DecodeJSON decodes a JSON request body, reporting decode failures as a
// Validation ServiceError rather than a raw error.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return gwerrors.Validation("request body is required", nil)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return gwerrors.Validation("request body too large", map[string]interface{}{"limitBytes": maxErr.Limit})
		}
		return gwerrors.Validation("invalid request body: "+err.Error(), nil)
	}
	return nil
}

// QueryInt extracts an integer query parameter with a default value.
func QueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return defaultVal
}

// QueryString extracts a string query parameter, or "" if absent.
func QueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ClientIP extracts the best-effort client IP, trusting X-Forwarded-For /
// X-Real-IP only when the direct peer is on a private or loopback network.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remoteIP := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}
	parsed := net.ParseIP(remoteIP)
	trustForwarded := parsed != nil && (parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast())
	if trustForwarded {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			candidate := strings.TrimSpace(strings.Split(xff, ",")[0])
			if host, _, err := net.SplitHostPort(candidate); err == nil {
				candidate = host
			}
			if candidate != "" {
				return candidate
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	return remoteIP
}
