package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-caller request budget. Callers are keyed
// by account ID when the route carries one, otherwise by remote address.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit rate.Limit
	burst int
}

// NewRateLimiter creates a rate limiter allowing rps requests per second
// with the given burst size per caller.
func NewRateLimiter(rps, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// getLimiter returns the limiter for a caller key, creating it on first use.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[key] = limiter

	return limiter
}

// RateLimitMiddleware creates a middleware that enforces rate limiting.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := mux.Vars(r)["accountId"]
			if key == "" {
				key = r.RemoteAddr
			}

			if !rl.getLimiter(key).Allow() {
				respondError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Rate limit exceeded. Please try again later.", map[string]interface{}{
					"limit": float64(rl.limit),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
