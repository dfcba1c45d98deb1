package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Label values for requests outside a configured collection.
const (
	noCollection      = "none"
	unknownCollection = "other"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecmatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "collection", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecmatch",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "collection", "status"},
	)

	httpMatchResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecmatch",
			Name:      "http_match_responses_total",
			Help:      "Match responses served per collection by cache outcome",
		},
		[]string{"collection", "cache"}, // "hit" / "miss"
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpMatchResponsesTotal)
}

// Middleware records HTTP request duration and count per route and
// collection, plus the cache outcome of match responses. Collection names
// outside collections are reported as "other" so a client cannot grow the
// label set.
func Middleware(collections []string) func(next http.Handler) http.Handler {
	known := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		known[c] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ww.status)

			// route params are only resolved once the router has run
			route := normalizeRoute(chi.RouteContext(r.Context()).RoutePattern())
			collection := collectionLabel(known, chi.URLParam(r, "collection"))

			httpRequestDuration.WithLabelValues(r.Method, route, collection, status).Observe(duration)
			httpRequestsTotal.WithLabelValues(r.Method, route, collection, status).Inc()

			if c := ww.Header().Get("X-Cache"); c != "" {
				httpMatchResponsesTotal.WithLabelValues(collection, strings.ToLower(c)).Inc()
			}
		})
	}
}

// normalizeRoute keeps unmatched paths out of the route label.
func normalizeRoute(pattern string) string {
	if pattern == "" {
		return "unknown"
	}
	return pattern
}

func collectionLabel(known map[string]struct{}, name string) string {
	if name == "" {
		return noCollection
	}
	if _, ok := known[name]; !ok {
		return unknownCollection
	}
	return name
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
