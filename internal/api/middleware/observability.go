package middleware

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/labtrack/lims/internal/infrastructure/observability"
)

type routeKey struct{}

// unmatchedRoute labels requests no pattern matched, so stray 404s share one series
const unmatchedRoute = "unmatched"

// ObservabilityMiddleware adds OpenTelemetry tracing and metrics to HTTP requests.
// The route label comes from RoutePattern, which must wrap the mux.
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := new(string)
			ctx := context.WithValue(r.Context(), routeKey{}, route)

			ctx, span := observability.StartSpan(ctx, r.Method+" request")
			defer span.End()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rw, r.WithContext(ctx))

			pattern := *route
			if pattern == "" {
				pattern = unmatchedRoute
			}
			span.SetName(pattern)
			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", pattern),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.Int("http.status_code", rw.statusCode),
			)
			metrics.RecordRequestMetric(ctx, r.Method, pattern, rw.statusCode, time.Since(start))
		})
	}
}

// RoutePattern reports the ServeMux pattern that served the request back to
// ObservabilityMiddleware. The mux only sets Pattern on the request it receives.
func RoutePattern(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if holder, ok := r.Context().Value(routeKey{}).(*string); ok {
			*holder = r.Pattern
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
