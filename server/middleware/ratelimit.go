package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/errors"
	"github.com/teilomillet/wave/server/metrics"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiters holds one token bucket per client IP.
type rateLimiters struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	window    time.Duration
	idle      time.Duration
	lastPrune time.Time
	now       func() time.Time
}

func newRateLimiters(requests int, window time.Duration) *rateLimiters {
	if requests <= 0 {
		requests = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiters{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		window:   window,
		idle:     3 * window,
		now:      time.Now,
	}
}

func (l *rateLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > l.idle {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, key)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit limits each client IP to cfg.Requests per cfg.Window. m may be
// nil.
func RateLimit(cfg config.RateLimitConfig, m *metrics.Metrics) func(http.Handler) http.Handler {
	limiters := newRateLimiters(cfg.Requests, cfg.Window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !limiters.get(ip).Allow() {
				if m != nil {
					m.RateLimitHits.WithLabelValues(ip).Inc()
				}

				retryAfter := int(math.Ceil((limiters.window / time.Duration(limiters.burst)).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				errResp := errors.NewRateLimitError(GetRequestID(r.Context()), retryAfter)
				errResp.Details["limit"] = limiters.burst
				errResp.Details["window"] = limiters.window.String()
				errors.WriteError(w, errResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
