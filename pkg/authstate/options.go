package authstate

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authcache"
)

// Default timeouts. One authoritative value per suspension point.
const (
	// DefaultBootstrapTimeout bounds the initial current-session query.
	DefaultBootstrapTimeout = 5 * time.Second

	// DefaultResolveTimeout is the ceiling on a combined authorization
	// resolution, both attempts included.
	DefaultResolveTimeout = 15 * time.Second

	// DefaultRetryDelay is the fixed backoff before the single retry.
	DefaultRetryDelay = 1 * time.Second
)

// Option configures a Machine.
type Option func(*Machine)

// WithCache sets the authorization cache. Default: in-memory cache.
func WithCache(c *authcache.Cache) Option {
	return func(m *Machine) {
		if c != nil {
			m.cache = c
		}
	}
}

// WithResolveTimeout overrides the resolution ceiling.
func WithResolveTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.resolveTimeout = d
		}
	}
}

// WithBootstrapTimeout overrides the bootstrap session-query ceiling.
func WithBootstrapTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.bootTimeout = d
		}
	}
}

// WithRetryDelay overrides the backoff before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.retryDelay = d
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics registers resolution metrics with reg.
// Without this option no metrics are collected.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Machine) {
		if reg != nil {
			m.metrics = newMetrics(reg)
		}
	}
}

// WithTracerName overrides the tracer name.
func WithTracerName(name string) Option {
	return func(m *Machine) {
		if name != "" {
			m.tracer = otel.Tracer(name)
		}
	}
}
