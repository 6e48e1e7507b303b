package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/server/metrics"
	"github.com/teilomillet/wave/server/middleware"
)

func TestRateLimitMetrics(t *testing.T) {
	m := metrics.NewMetrics()

	handler := middleware.RateLimit(config.RateLimitConfig{
		Enabled:  true,
		Requests: 10,
		Window:   time.Minute,
	}, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	testIP := "127.0.0.1"
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = testIP + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i < 10 {
			assert.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "6", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "rate_limit_error")
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitHits.WithLabelValues(testIP)))
}

func TestRateLimitIsPerClient(t *testing.T) {
	handler := middleware.RateLimit(config.RateLimitConfig{Requests: 1, Window: time.Hour}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		addr string
		want int
	}{
		{"10.0.0.1:1000", http.StatusOK},
		{"10.0.0.1:2000", http.StatusTooManyRequests},
		{"10.0.0.2:1000", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, tt.addr)
	}
}
