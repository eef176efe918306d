// Package server exposes the task list over HTTP: a small auth surface
// driving the identity hub, the gate-guarded task and collaborator APIs,
// a websocket change feed, and Prometheus metrics.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authstate"
	"github.com/iamrohanmehra/task-twin-betax/pkg/gate"
	"github.com/iamrohanmehra/task-twin-betax/pkg/identity"
	"github.com/iamrohanmehra/task-twin-betax/pkg/middleware"
	"github.com/iamrohanmehra/task-twin-betax/pkg/tasks"
)

// Server wires the auth machine, the identity hub, and the task store
// into an HTTP handler.
type Server struct {
	machine  *authstate.Machine
	hub      *identity.Hub
	store    *tasks.Store
	logger   *slog.Logger
	metrics  *prometheus.Registry
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRegistry sets the Prometheus registry served on /metrics.
// Default: a registry private to this Server.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.metrics = reg
		}
	}
}

// New creates a Server.
func New(machine *authstate.Machine, hub *identity.Hub, store *tasks.Store, opts ...Option) *Server {
	s := &Server{
		machine: machine,
		hub:     hub,
		store:   store,
		logger:  slog.Default(),
		metrics: prometheus.NewRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Prometheus(middleware.WithRegistry(s.metrics)))
	r.Use(middleware.OpenTelemetry(middleware.WithRequestFilter(func(r *http.Request) bool {
		return r.URL.Path != "/metrics"
	})))

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.Get("/auth/state", s.handleAuthState)

	r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(gate.Middleware(s.machine, gate.RequireCollaborator))

		r.Get("/api/tasks", s.handleListTasks)
		r.Post("/api/tasks", s.handleCreateTask)
		r.Patch("/api/tasks/{id}", s.handleUpdateTask)
		r.Post("/api/tasks/{id}/toggle", s.handleToggleTask)
		r.Delete("/api/tasks/{id}", s.handleDeleteTask)

		r.Get("/ws", s.handleWS)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.Middleware(s.machine, gate.RequireAdmin))

		r.Get("/api/collaborators", s.handleListCollaborators)
		r.Put("/api/collaborators", s.handleReplaceCollaborators)
	})

	return r
}
