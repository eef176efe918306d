package gate

import (
	"net/http"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authstate"
	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
)

// Middleware guards HTTP routes with req against the machine's state.
//
// Pending maps to 503 with Retry-After so clients poll instead of seeing
// a premature denial; NeedsSignIn and NeedsAuthorization map to the
// standard auth status codes.
func Middleware(m *authstate.Machine, req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch Decide(m.State(), req) {
			case Granted:
				next.ServeHTTP(w, r)
			case Pending:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "authorization pending", http.StatusServiceUnavailable)
			case NeedsSignIn:
				code, _ := authz.StatusCode(authz.ErrUnauthorized)
				http.Error(w, authz.ErrUnauthorized.Error(), code)
			default:
				code, _ := authz.StatusCode(authz.ErrForbidden)
				http.Error(w, authz.ErrForbidden.Error(), code)
			}
		})
	}
}
