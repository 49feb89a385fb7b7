package http

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// maxLimiters caps how many client limiters are tracked before the table resets.
const maxLimiters = 10000

// WithRateLimit throttles each client address to rps requests per second
// with bursts of up to burst requests. Rejected requests get 429.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = &rateLimiter{
			limiters: make(map[string]*rate.Limiter),
			rate:     rate.Limit(rps),
			burst:    burst,
		}
	}
}

type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}
		if !s.limiter.get(key).Allow() {
			s.logger.Warn("rate limit exceeded", "client", key, "path", r.URL.Path, "method", r.Method)
			s.writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
