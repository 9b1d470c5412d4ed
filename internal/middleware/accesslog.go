package middleware

import (
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nordicledger/accounting-gateway/internal/logging"
)

// accessLogger is the one-line-per-request JSON sink, kept separate from the
// logrus-backed application logger (internal/logging.Logger): this is purely
// a wire-format concern, not something callers need to configure levels or
// hooks on.
var (
	accessLoggerOnce sync.Once
	accessLogger     zerolog.Logger
)

func getAccessLogger() zerolog.Logger {
	accessLoggerOnce.Do(func() {
		accessLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
	return accessLogger
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// AccessLog assigns (or propagates) a trace id and emits one zerolog JSON
// line per completed request, independent of the application logger passed
// in (which still gets its own structured entry via logger.LogRequest).
func AccessLog(logger *logging.Logger) func(http.Handler) http.Handler {
	access := getAccessLogger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = logging.NewTraceID()
			}
			ctx := logging.WithTraceID(r.Context(), traceID)
			r = r.WithContext(ctx)
			w.Header().Set("X-Trace-ID", traceID)

			wrapped := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			logger.LogRequest(ctx, r.Method, r.URL.Path, wrapped.status, duration)

			access.Info().
				Str("trace_id", traceID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.status).
				Dur("duration", duration).
				Msg("request")
		})
	}
}
