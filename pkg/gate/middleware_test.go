package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authstate"
	"github.com/iamrohanmehra/task-twin-betax/pkg/identity"
)

func newGuardedServer(m *authstate.Machine, req Requirement) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret"))
	})
	return Middleware(m, req)(ok)
}

func TestMiddlewareGranted(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "carol@x.com"})

	m := authstate.New(hub, &scriptedLookup{})
	defer m.Close()
	m.Start(context.Background())
	awaitSettled(t, m)

	rec := httptest.NewRecorder()
	newGuardedServer(m, RequireCollaborator).ServeHTTP(rec, httptest.NewRequest("GET", "/tasks", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "secret" {
		t.Errorf("Expected 200 with body, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestMiddlewareSignedOut(t *testing.T) {
	hub := identity.NewHub()
	m := authstate.New(hub, &scriptedLookup{})
	defer m.Close()
	m.Start(context.Background())

	rec := httptest.NewRecorder()
	newGuardedServer(m, RequireCollaborator).ServeHTTP(rec, httptest.NewRequest("GET", "/tasks", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for signed-out, got %d", rec.Code)
	}
}

func TestMiddlewareForbidden(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "carol@x.com"})

	// Collaborator but not admin.
	m := authstate.New(hub, &scriptedLookup{})
	defer m.Close()
	m.Start(context.Background())
	awaitSettled(t, m)

	rec := httptest.NewRecorder()
	newGuardedServer(m, RequireAdmin).ServeHTTP(rec, httptest.NewRequest("GET", "/admin", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-admin, got %d", rec.Code)
	}
}

func TestMiddlewarePending(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "carol@x.com"})

	lookup := &scriptedLookup{delay: 5 * time.Second}
	m := authstate.New(hub, lookup)
	defer m.Close()
	m.Start(context.Background())

	rec := httptest.NewRecorder()
	newGuardedServer(m, RequireCollaborator).ServeHTTP(rec, httptest.NewRequest("GET", "/tasks", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 while pending, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header on pending response")
	}
}
