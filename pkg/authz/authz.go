package authz

import (
	"context"
	"errors"
	"net/http"
)

// ErrUnauthorized is returned when authentication is required but not present.
// This typically triggers a 401 response or redirect to login.
var ErrUnauthorized = errors.New("unauthorized: authentication required")

// ErrForbidden is returned when authentication is present but insufficient.
// This typically triggers a 403 response.
var ErrForbidden = errors.New("forbidden: insufficient permissions")

// Profile is the backing app-user row for a registered email.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Admin bool   `json:"is_admin"`
}

// Record is the result of resolving an email to permissions.
type Record struct {
	// Authorized reports whether the email may act as a collaborator.
	Authorized bool

	// Admin reports whether the email may access admin-only surfaces.
	Admin bool

	// Profile is the backing app user, nil if the email is unregistered.
	Profile *Profile
}

// Normalize returns the record with the admin-implies-collaborator
// invariant applied. The backing store reports the two flags from
// independent queries, so an admin row missing from the collaborator
// table would otherwise read as Authorized=false.
func (r Record) Normalize() Record {
	if r.Admin {
		r.Authorized = true
	}
	return r
}

// Lookup resolves an email against the authorization store.
//
// Both methods fail with an error on transport problems rather than
// silently answering false; callers distinguish "checked: not authorized"
// from "could not check". Latency is unbounded; callers impose their own
// deadlines through ctx.
type Lookup interface {
	// IsUserAuthorized reports whether email is an admin or a registered
	// collaborator.
	IsUserAuthorized(ctx context.Context, email string) (bool, error)

	// LookupProfile returns the app profile for email, or (nil, nil) if
	// the email is unregistered.
	LookupProfile(ctx context.Context, email string) (*Profile, error)
}

// StatusCode returns the HTTP status for an authorization error.
// Returns (0, false) for errors outside the taxonomy.
func StatusCode(err error) (int, bool) {
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, true
	default:
		return 0, false
	}
}

// IsAuthError reports whether err belongs to the authorization taxonomy.
func IsAuthError(err error) bool {
	return err != nil && (errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden))
}
