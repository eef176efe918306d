// Package middleware provides HTTP middleware for the TaskTwin server.
//
// This package includes:
//   - Prometheus metrics middleware
//   - OpenTelemetry tracing middleware
//
// # Prometheus Metrics
//
// The Prometheus middleware collects per-route request metrics:
//   - tasktwin_http_requests_total: requests by route, method, and status
//   - tasktwin_http_request_duration_seconds: request duration histogram
//   - tasktwin_http_requests_in_flight: currently executing requests
//
//	r.Use(middleware.Prometheus())
//
// # OpenTelemetry
//
// The OpenTelemetry middleware creates a server span per request, using
// the chi route pattern as the span name so task IDs do not explode the
// cardinality.
//
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("tasktwin"),
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/metrics"
//	    }),
//	))
//
// The tracer uses the global OpenTelemetry tracer provider; configure it
// in main() before starting the server.
package middleware
