package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/memtide/memtide/pkg/api/response"
)

// RateLimitOptions tunes the per-client rate limiter.
type RateLimitOptions struct {
	// RequestsPerSecond is the sustained rate allowed per client.
	RequestsPerSecond float64

	// Burst is the burst allowance per client.
	Burst int

	// ClientKey extracts the limiter key from a request. Defaults to the
	// remote IP.
	ClientKey func(r *http.Request) string

	// IdleTTL evicts limiters not seen for this long. Defaults to 10
	// minutes.
	IdleTTL time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns a middleware enforcing a token-bucket rate limit per
// client. Limiters are created lazily and evicted after IdleTTL so the
// map does not grow with every client ever seen.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 50
	}
	if opts.Burst <= 0 {
		opts.Burst = int(opts.RequestsPerSecond) * 2
	}
	if opts.ClientKey == nil {
		opts.ClientKey = clientIP
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}

	var mu sync.Mutex
	clients := make(map[string]*clientLimiter)
	lastSweep := time.Now()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.ClientKey(r)

			mu.Lock()
			now := time.Now()
			if now.Sub(lastSweep) > opts.IdleTTL {
				for k, c := range clients {
					if now.Sub(c.lastSeen) > opts.IdleTTL {
						delete(clients, k)
					}
				}
				lastSweep = now
			}
			c, ok := clients[key]
			if !ok {
				c = &clientLimiter{
					limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
				}
				clients[key] = c
			}
			c.lastSeen = now
			allowed := c.limiter.Allow()
			mu.Unlock()

			if !allowed {
				w.Header().Set("Retry-After", "1")
				response.Error(w, http.StatusTooManyRequests, response.ErrCodeRateLimited,
					"Too many requests", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. Falls back to the raw value
// when it is not host:port shaped.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
