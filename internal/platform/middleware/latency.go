package middleware

import (
	"net/http"
	"strconv"
	"time"

	"sigil/internal/platform/metrics"
)

// Latency records request duration per route pattern and status class.
func Latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.HTTPLatency.WithLabelValues(r.URL.Path, strconv.Itoa(sw.status)).Observe(time.Since(start).Seconds())
		})
	}
}
