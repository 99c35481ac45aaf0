package httppresentation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bookwell/cartsync/internal/observability"
	"github.com/bookwell/cartsync/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const headerRequestID = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Observability wraps every route with trace extraction, a request-scoped
// logger, and RED metrics labeled by the chi route pattern.
func Observability(baseLog observability.Logger, tel observability.Observability) func(http.Handler) http.Handler {
	propagator := propagation.TraceContext{}
	requests := tel.Metrics().Counter(observability.MHTTPRequests)
	durations := tel.Metrics().Histogram(observability.MHTTPRequestDuration)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			requestID := r.Header.Get(headerRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(headerRequestID, requestID)

			ctx, span := tel.Tracer().Start(ctx, "http."+r.Method,
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			)
			defer span.End()

			reqLog := baseLog.With(
				observability.F("request_id", requestID),
				observability.F("trace_id", span.SpanContext().TraceID().String()),
			)
			ctx = logctx.With(ctx, reqLog)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			elapsed := time.Since(start)

			labels := []observability.Label{
				observability.L("method", r.Method),
				observability.L("route", route),
				observability.L("status", strconv.Itoa(rec.status)),
			}
			requests.Add(1, labels...)
			durations.Observe(elapsed.Seconds(), labels...)

			reqLog.Info("http_request_done",
				observability.F("method", r.Method),
				observability.F("route", route),
				observability.F("status", rec.status),
				observability.F("duration_ms", elapsed.Milliseconds()),
			)
		})
	}
}
