// Package middleware provides the gateway's ambient HTTP middleware chain:
// panic recovery, CORS, body-size limiting, request timeout, ingress rate
// limiting, access logging, API-key authentication, and the consent-scoped
// credential-resolution middleware of spec.md §4.8. Grounded on the
// teacher's infrastructure/middleware package.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/httpresponse"
	"github.com/nordicledger/accounting-gateway/internal/logging"
)

// Recovery recovers from panics in any downstream handler, logs them with a
// stack trace, and renders a 500 instead of crashing the process.
func Recovery(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithContext(r.Context()).WithField("panic", fmt.Sprintf("%v", rec)).
						WithField("stack", string(debug.Stack())).
						WithField("path", r.URL.Path).
						WithField("method", r.Method).
						Error("panic recovered")
					httpresponse.WriteError(w, r, gwerrors.Internal("internal server error", fmt.Errorf("%v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
