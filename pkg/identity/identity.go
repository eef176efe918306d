package identity

import "context"

// Identity is the signed-in principal as reported by the identity provider.
// An Identity is immutable for the lifetime of its session; a new sign-in
// produces a new value.
type Identity struct {
	// ID is the provider's stable identifier for the account.
	ID string

	// Email is the address authorization is keyed by. The provider treats
	// it as optional, but every authorization path in this application
	// requires it.
	Email string

	// Name is the display name, if the provider supplied one.
	Name string
}

// Event describes a session change reported by the provider.
type Event int

const (
	// EventSignedIn fires when a session is established.
	EventSignedIn Event = iota

	// EventSignedOut fires when the session ends. The identity argument
	// accompanying it is nil.
	EventSignedOut

	// EventTokenRefreshed fires when the provider refreshes credentials
	// for the current session. The identity is unchanged.
	EventTokenRefreshed
)

// String returns the event name for logging.
func (e Event) String() string {
	switch e {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// Handler receives session-change events. A nil identity means no session.
type Handler func(event Event, id *Identity)

// Source is the identity provider as seen by the auth core.
//
// CurrentSession is idempotent and callable at any time. OnSessionChange
// delivers events in the order they occur; the returned function cancels
// the subscription. SignOut terminates the provider session; callers must
// react to the resulting EventSignedOut rather than assume a synchronous
// effect.
type Source interface {
	CurrentSession(ctx context.Context) (*Identity, error)
	OnSessionChange(fn Handler) (unsubscribe func())
	SignOut(ctx context.Context) error
}
