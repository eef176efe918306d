package gate

import (
	"github.com/iamrohanmehra/task-twin-betax/pkg/authstate"
)

// Requirement declares what a protected surface needs. Both flags default
// to false, which is open access, so protected content must set at least
// one.
type Requirement struct {
	// Admin requires the admin tier.
	Admin bool

	// Collaborator requires collaborator access. Admins pass this too;
	// admin is a superset of collaborator access even if the lookup
	// reported the flags independently.
	Collaborator bool
}

// RequireAdmin is the requirement for admin-only surfaces.
var RequireAdmin = Requirement{Admin: true}

// RequireCollaborator is the requirement for the shared task list.
var RequireCollaborator = Requirement{Collaborator: true}

// Mode is the gate's decision.
type Mode int

const (
	// Pending: the state is still loading; render a neutral placeholder.
	Pending Mode = iota

	// NeedsSignIn: no identity; prompt for sign-in.
	NeedsSignIn

	// NeedsAuthorization: identity present but the requirement fails.
	// A failed check reads the same as "not authorized"; there is no
	// separate error mode.
	NeedsAuthorization

	// Granted: render the protected content.
	Granted
)

// String returns the mode name for logging.
func (m Mode) String() string {
	switch m {
	case Pending:
		return "pending"
	case NeedsSignIn:
		return "needs_sign_in"
	case NeedsAuthorization:
		return "needs_authorization"
	case Granted:
		return "granted"
	default:
		return "unknown"
	}
}

// Decide maps (state, requirement) to a render mode.
func Decide(s authstate.State, req Requirement) Mode {
	if s.Loading {
		return Pending
	}
	if !s.SignedIn() {
		return NeedsSignIn
	}
	if req.Admin && !s.Admin() {
		return NeedsAuthorization
	}
	if req.Collaborator && !s.Authorized() {
		return NeedsAuthorization
	}
	return Granted
}
