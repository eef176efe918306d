package authstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authcache"
	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
	"github.com/iamrohanmehra/task-twin-betax/pkg/identity"
)

const defaultTracerName = "tasktwin/authstate"

// Machine reconciles the identity source, the authorization lookup, and
// the cache into one published State. Create it with New, call Start
// once, and Close when the application root unmounts.
type Machine struct {
	source identity.Source
	lookup authz.Lookup
	cache  *authcache.Cache

	bootTimeout    time.Duration
	resolveTimeout time.Duration
	retryDelay     time.Duration

	logger  *slog.Logger
	metrics *metrics
	tracer  trace.Tracer

	mu    sync.Mutex
	state State

	// token tags the current resolution attempt. Every entry into
	// Resolving bumps it; a resolution writes state only if its token is
	// still current at completion time.
	token uint64

	// inflight is the email being resolved under the current token, or
	// "" when no resolution is active. A second trigger for the same
	// email attaches to the in-flight resolution instead of issuing a
	// second remote lookup.
	inflight string

	subs   []subscriber
	nextID uint64

	ctx         context.Context
	cancel      context.CancelFunc
	unsubSource func()
	started     bool
	closed      bool
}

type subscriber struct {
	id uint64
	fn func(State)
}

// New creates a Machine over source and lookup. The machine starts in
// the bootstrapping state (loading, no identity) until Start runs.
func New(source identity.Source, lookup authz.Lookup, opts ...Option) *Machine {
	m := &Machine{
		source:         source,
		lookup:         lookup,
		cache:          authcache.New(nil),
		bootTimeout:    DefaultBootstrapTimeout,
		resolveTimeout: DefaultResolveTimeout,
		retryDelay:     DefaultRetryDelay,
		logger:         slog.Default(),
		tracer:         otel.Tracer(defaultTracerName),
		state:          State{Loading: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every published state change. The returned
// function cancels the subscription. fn is called synchronously on the
// publishing goroutine; it must not block.
func (m *Machine) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Start subscribes to session-change events and bootstraps from the
// current session. It is idempotent; only the first call has effect.
// ctx scopes all in-flight work; cancelling it stops the machine.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	boot := m.token
	m.mu.Unlock()

	// Subscribe before the bootstrap query so an event arriving mid-
	// bootstrap supersedes it instead of being missed.
	unsub := m.source.OnSessionChange(m.handleEvent)
	m.mu.Lock()
	m.unsubSource = unsub
	m.mu.Unlock()

	bctx, cancel := context.WithTimeout(m.ctx, m.bootTimeout)
	defer cancel()

	id, err := m.source.CurrentSession(bctx)
	if err != nil {
		// Liveness: a failed bootstrap must not hang consumers. Treat it
		// as signed out; the next session event corrects the state.
		m.logger.Warn("authstate: bootstrap session query failed", "error", err)
		m.finishBootstrap(boot, nil)
		return
	}
	m.finishBootstrap(boot, id)
}

// finishBootstrap applies the bootstrap answer under the token scheme: a
// session event handled while the query was in flight has already bumped
// the token, and the stale answer must not overwrite what it settled.
func (m *Machine) finishBootstrap(boot uint64, id *identity.Identity) {
	m.mu.Lock()
	if m.closed || m.token != boot {
		m.mu.Unlock()
		m.logger.Debug("authstate: discarding superseded bootstrap result")
		return
	}
	if id == nil {
		// No session and no sign-out: the cache slot stays warm for the
		// next sign-in of the same account.
		subs, state := m.signOutLocked()
		m.mu.Unlock()
		notify(subs, state)
		return
	}
	m.resolveLocked(id)
}

// SignOut asks the identity provider to end the session. State changes
// when the resulting signed-out event arrives, not synchronously here.
func (m *Machine) SignOut(ctx context.Context) error {
	return m.source.SignOut(ctx)
}

// Close cancels in-flight work and detaches from the identity source.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.token++
	m.inflight = ""
	cancel := m.cancel
	unsub := m.unsubSource
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
}

// handleEvent reacts to one session-change event. Events arrive in
// occurrence order, but a previous event's resolution may still be in
// flight; the token discards its result once this event takes over.
func (m *Machine) handleEvent(event identity.Event, id *identity.Identity) {
	m.logger.Debug("authstate: session event", "event", event.String(), "signed_in", id != nil)

	if id == nil {
		m.toSignedOut()
		return
	}
	m.beginResolve(id)
}

// toSignedOut moves to the absorbing signed-out state, cancelling any
// in-flight resolution by bumping the token, and clears the cache slot.
func (m *Machine) toSignedOut() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	subs, state := m.signOutLocked()
	m.mu.Unlock()

	m.cache.Clear(m.resolveCtx())
	notify(subs, state)
}

// signOutLocked resets to SignedOut. Must be called with m.mu held;
// returns the subscribers to notify after the lock is released.
func (m *Machine) signOutLocked() ([]subscriber, State) {
	m.token++
	m.inflight = ""
	m.state = State{}
	return m.copySubs(), m.state
}

// beginResolve enters Resolving(id) under a fresh token and spawns the
// resolution. A trigger for the email already in flight attaches to the
// existing resolution instead of starting another.
func (m *Machine) beginResolve(id *identity.Identity) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.resolveLocked(id)
}

// resolveLocked is beginResolve's core. Must be called with m.mu held;
// releases it before notifying.
func (m *Machine) resolveLocked(id *identity.Identity) {
	if m.inflight != "" && m.inflight == id.Email {
		// Same email already resolving; adopt the fresher identity
		// instance and let the in-flight result settle for both.
		m.state.Identity = id
		subs := m.copySubs()
		state := m.state
		m.mu.Unlock()
		notify(subs, state)
		return
	}

	m.token++
	tok := m.token
	m.inflight = id.Email
	// Keep the previous record in the struct while loading: the gate
	// masks it, and the timeout valve preserves rather than nulls it.
	m.state = State{Identity: id, Authorization: m.state.Authorization, Loading: true}
	subs := m.copySubs()
	state := m.state
	m.mu.Unlock()

	notify(subs, state)
	go m.resolve(tok, id)
}

// resolve performs one resolution attempt chain for id under tok.
func (m *Machine) resolve(tok uint64, id *identity.Identity) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(m.resolveCtx(), m.resolveTimeout)
	defer cancel()

	ctx, span := m.tracer.Start(ctx, "authstate.resolve")
	defer span.End()

	if rec := m.cache.Get(ctx, id.Email); rec != nil {
		m.applyRecord(tok, id, rec.Normalize(), outcomeCached, start)
		return
	}

	rec, err := m.lookupOnce(ctx, id.Email)
	if err != nil && ctx.Err() == nil && !m.superseded(tok) {
		m.logger.Warn("authstate: authorization lookup failed, retrying",
			"error", err, "backoff", m.retryDelay)
		m.metrics.retried()

		select {
		case <-time.After(m.retryDelay):
		case <-ctx.Done():
		}
		if ctx.Err() == nil && !m.superseded(tok) {
			rec, err = m.lookupOnce(ctx, id.Email)
		}
	}

	switch {
	case err == nil && ctx.Err() == nil:
		m.cache.Set(ctx, id.Email, rec)
		m.applyRecord(tok, id, rec.Normalize(), outcomeOK, start)

	case ctx.Err() != nil:
		// Timeout (or shutdown): liveness valve. Drop loading, keep the
		// held values; permissions may be undercounted until re-check.
		span.SetStatus(codes.Error, "resolution timed out")
		m.logger.Warn("authstate: resolution timed out", "elapsed", time.Since(start))
		m.finishWithoutResult(tok, start)

	default:
		// Both attempts failed. Stale-but-matching-email data beats
		// locking the user out; no data at all fails closed.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if stale := m.cache.GetStale(ctx, id.Email); stale != nil {
			m.logger.Warn("authstate: lookup failed twice, serving stale cache", "error", err)
			m.applyRecord(tok, id, stale.Normalize(), outcomeStale, start)
			return
		}
		m.logger.Error("authstate: lookup failed twice with no cache, failing closed", "error", err)
		m.applyRecord(tok, id, authz.Record{}, outcomeFailed, start)
	}
}

// lookupOnce issues the two authorization checks concurrently and merges
// them into a record. Either check failing fails the whole attempt.
func (m *Machine) lookupOnce(ctx context.Context, email string) (authz.Record, error) {
	var (
		wg         sync.WaitGroup
		authorized bool
		authErr    error
		profile    *authz.Profile
		profErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		authorized, authErr = m.lookup.IsUserAuthorized(ctx, email)
	}()
	go func() {
		defer wg.Done()
		profile, profErr = m.lookup.LookupProfile(ctx, email)
	}()
	wg.Wait()

	if authErr != nil {
		return authz.Record{}, authErr
	}
	if profErr != nil {
		return authz.Record{}, profErr
	}

	rec := authz.Record{
		Authorized: authorized,
		Profile:    profile,
	}
	if profile != nil {
		rec.Admin = profile.Admin
	}
	return rec, nil
}

// applyRecord writes the settled state if tok is still current.
func (m *Machine) applyRecord(tok uint64, id *identity.Identity, rec authz.Record, outcome string, start time.Time) {
	m.mu.Lock()
	if tok != m.token {
		m.mu.Unlock()
		m.metrics.observe(outcomeSuperseded, start)
		m.logger.Debug("authstate: discarding superseded resolution")
		return
	}
	m.inflight = ""
	m.state = State{Identity: id, Authorization: &rec, Loading: false}
	subs := m.copySubs()
	state := m.state
	m.mu.Unlock()

	m.metrics.observe(outcome, start)
	notify(subs, state)
}

// finishWithoutResult clears loading while preserving held values.
func (m *Machine) finishWithoutResult(tok uint64, start time.Time) {
	m.mu.Lock()
	if tok != m.token {
		m.mu.Unlock()
		m.metrics.observe(outcomeSuperseded, start)
		return
	}
	m.inflight = ""
	m.state.Loading = false
	subs := m.copySubs()
	state := m.state
	m.mu.Unlock()

	m.metrics.observe(outcomeTimeout, start)
	notify(subs, state)
}

func (m *Machine) superseded(tok uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return tok != m.token
}

// resolveCtx returns the machine-lifetime context, or Background before
// Start.
func (m *Machine) resolveCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

// copySubs must be called with m.mu held.
func (m *Machine) copySubs() []subscriber {
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	return subs
}

// notify runs outside the lock so a subscriber may read the machine.
func notify(subs []subscriber, state State) {
	for _, s := range subs {
		s.fn(state)
	}
}
