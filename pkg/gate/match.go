package gate

import (
	"github.com/iamrohanmehra/task-twin-betax/pkg/authstate"
)

// Handler renders one gate mode. Renderers are generic in their output
// so callers can produce HTML fragments, view models, or anything else.
type Handler[T any] interface {
	handle(mode Mode, s authstate.State) (T, bool)
}

// Match decides the mode for (s, req) and dispatches to the first
// matching handler. The zero value is returned when no handler matches.
func Match[T any](s authstate.State, req Requirement, handlers ...Handler[T]) T {
	mode := Decide(s, req)
	for _, h := range handlers {
		if out, ok := h.handle(mode, s); ok {
			return out
		}
	}
	var zero T
	return zero
}

type pendingHandler[T any] struct {
	fn func() T
}

func (h pendingHandler[T]) handle(mode Mode, _ authstate.State) (T, bool) {
	if mode == Pending {
		return h.fn(), true
	}
	var zero T
	return zero, false
}

type signInHandler[T any] struct {
	fn func() T
}

func (h signInHandler[T]) handle(mode Mode, _ authstate.State) (T, bool) {
	if mode == NeedsSignIn {
		return h.fn(), true
	}
	var zero T
	return zero, false
}

type deniedHandler[T any] struct {
	fn func(s authstate.State) T
}

func (h deniedHandler[T]) handle(mode Mode, s authstate.State) (T, bool) {
	if mode == NeedsAuthorization {
		return h.fn(s), true
	}
	var zero T
	return zero, false
}

type grantedHandler[T any] struct {
	fn func(s authstate.State) T
}

func (h grantedHandler[T]) handle(mode Mode, s authstate.State) (T, bool) {
	if mode == Granted {
		return h.fn(s), true
	}
	var zero T
	return zero, false
}

// OnPending handles the Pending mode.
func OnPending[T any](fn func() T) Handler[T] {
	return pendingHandler[T]{fn: fn}
}

// OnNeedsSignIn handles the NeedsSignIn mode.
func OnNeedsSignIn[T any](fn func() T) Handler[T] {
	return signInHandler[T]{fn: fn}
}

// OnNeedsAuthorization handles the NeedsAuthorization mode.
func OnNeedsAuthorization[T any](fn func(s authstate.State) T) Handler[T] {
	return deniedHandler[T]{fn: fn}
}

// OnGranted handles the Granted mode.
func OnGranted[T any](fn func(s authstate.State) T) Handler[T] {
	return grantedHandler[T]{fn: fn}
}
