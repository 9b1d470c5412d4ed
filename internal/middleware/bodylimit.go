package middleware

import "net/http"

const defaultMaxRequestBodyBytes int64 = 16 << 20 // 16MiB; SIE exports can be sizeable

// BodyLimit caps request bodies via http.MaxBytesReader, so downstream
// decoders cannot read beyond the configured limit. maxBytes <= 0 applies
// the default.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
