package middleware

import (
	"net/http"
	"sync"

	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/httpresponse"
	"github.com/nordicledger/accounting-gateway/internal/ratelimit"
)

// IngressLimiter applies a token bucket per caller (tenant id if
// authenticated, otherwise client IP), reusing the same bucket
// implementation the vendor clients use (spec.md §4.1).
type IngressLimiter struct {
	mu       sync.Mutex
	cfg      ratelimit.Config
	limiters map[string]*ratelimit.Limiter
}

// NewIngressLimiter builds a limiter sized per-caller by cfg.
func NewIngressLimiter(cfg ratelimit.Config) *IngressLimiter {
	return &IngressLimiter{cfg: cfg, limiters: make(map[string]*ratelimit.Limiter)}
}

func (l *IngressLimiter) forKey(key string) *ratelimit.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = ratelimit.New(l.cfg)
		l.limiters[key] = lim
	}
	return lim
}

// Handler returns the ingress rate-limit middleware. It never blocks the
// request: a caller without a free token is rejected with 429 rather than
// made to wait, since waiting here would hold an HTTP connection open.
func (l *IngressLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := TenantIDFromContext(r.Context())
		if key == "" {
			key = httpresponse.ClientIP(r)
		}
		if key == "" {
			key = "unknown"
		}
		if !l.forKey(key).Allow() {
			httpresponse.WriteError(w, r, gwerrors.RateLimited())
			return
		}
		next.ServeHTTP(w, r)
	})
}
