package identity

import (
	"context"
	"sync"
)

// Hub is an in-process Source. The demo server drives it from its login
// and logout endpoints; tests drive it directly.
//
// Events are dispatched synchronously in subscription order. Publishes are
// serialized: dispatch for one event completes before the next Publish
// proceeds, so handlers observe events in the same order the current
// identity was updated. Handlers may query the hub but must not publish
// from inside a callback.
type Hub struct {
	mu         sync.RWMutex
	dispatchMu sync.Mutex
	current    *Identity
	subs       []hubSub
	nextID     uint64
}

type hubSub struct {
	id uint64
	fn Handler
}

// NewHub creates a Hub with no signed-in identity.
func NewHub() *Hub {
	return &Hub{}
}

// CurrentSession returns the identity most recently published, or nil.
func (h *Hub) CurrentSession(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, nil
}

// OnSessionChange registers fn for future events. The returned function
// removes the subscription; calling it more than once is harmless.
func (h *Hub) OnSessionChange(fn Handler) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, hubSub{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// SignOut clears the current identity and publishes EventSignedOut.
func (h *Hub) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.Publish(EventSignedOut, nil)
	return nil
}

// SignIn records id as the current identity and publishes EventSignedIn.
func (h *Hub) SignIn(id *Identity) {
	h.Publish(EventSignedIn, id)
}

// Publish updates the current identity and notifies subscribers.
// dispatchMu keeps the update and the notification atomic with respect to
// other publishers; h.mu alone guards the fields, so a handler may still
// resubscribe or query the hub without deadlocking.
func (h *Hub) Publish(event Event, id *Identity) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	h.mu.Lock()
	switch event {
	case EventSignedOut:
		h.current = nil
	case EventSignedIn:
		h.current = id
	}
	subs := make([]hubSub, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, s := range subs {
		s.fn(event, id)
	}
}
