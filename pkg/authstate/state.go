package authstate

import (
	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
	"github.com/iamrohanmehra/task-twin-betax/pkg/identity"
)

// State is the single published auth state.
//
// While Loading is true, Authorization must not be treated as
// authoritative even if a stale value is present; the gate renders a
// pending mode for the whole window.
type State struct {
	// Identity is the current signed-in principal, nil when signed out.
	Identity *identity.Identity

	// Authorization is the last applied record for Identity, nil until
	// a resolution has settled.
	Authorization *authz.Record

	// Loading is true from bootstrap or the start of a resolution until
	// it settles, times out, or is absorbed by sign-out.
	Loading bool
}

// SignedIn reports whether an identity is present.
func (s State) SignedIn() bool {
	return s.Identity != nil
}

// Authorized reports collaborator access, with the admin-implies-
// collaborator invariant applied.
func (s State) Authorized() bool {
	if s.Authorization == nil {
		return false
	}
	return s.Authorization.Normalize().Authorized
}

// Admin reports admin access.
func (s State) Admin() bool {
	return s.Authorization != nil && s.Authorization.Admin
}
