package tasks

import (
	"context"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
)

// Lookup adapts a Store to authz.Lookup so a single-binary deployment
// can authorize against its own tables. Multi-service deployments use
// the rest client against the shared store instead.
type Lookup struct {
	store *Store
}

// NewLookup creates the adapter.
func NewLookup(store *Store) *Lookup {
	return &Lookup{store: store}
}

// IsUserAuthorized reports whether email is an admin or holds a
// collaborator position.
func (l *Lookup) IsUserAuthorized(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if u, ok := l.store.UserByEmail(email); ok && u.Admin {
		return true, nil
	}
	return l.store.IsCollaborator(email), nil
}

// LookupProfile returns the profile for email, or (nil, nil) if the
// email is unregistered.
func (l *Lookup) LookupProfile(ctx context.Context, email string) (*authz.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := l.store.UserByEmail(email)
	if !ok {
		return nil, nil
	}
	return &authz.Profile{ID: u.ID, Email: u.Email, Name: u.Name, Admin: u.Admin}, nil
}
