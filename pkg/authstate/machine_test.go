package authstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authcache"
	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
	"github.com/iamrohanmehra/task-twin-betax/pkg/identity"
)

// fakeLookup scripts the authorization store per call.
type fakeLookup struct {
	mu        sync.Mutex
	authCalls int
	profCalls int
	authFn    func(call int, email string) (bool, error)
	profFn    func(call int, email string) (*authz.Profile, error)
}

func (f *fakeLookup) IsUserAuthorized(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	f.authCalls++
	call := f.authCalls
	fn := f.authFn
	f.mu.Unlock()
	if fn == nil {
		return true, nil
	}
	return fn(call, email)
}

func (f *fakeLookup) LookupProfile(ctx context.Context, email string) (*authz.Profile, error) {
	f.mu.Lock()
	f.profCalls++
	call := f.profCalls
	fn := f.profFn
	f.mu.Unlock()
	if fn == nil {
		return &authz.Profile{ID: "u", Email: email}, nil
	}
	return fn(call, email)
}

func (f *fakeLookup) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls
}

// awaitState blocks until the machine publishes a state matching pred.
func awaitState(t *testing.T, m *Machine, pred func(State) bool) State {
	t.Helper()

	ch := make(chan State, 16)
	unsub := m.Subscribe(func(s State) {
		select {
		case ch <- s:
		default:
		}
	})
	defer unsub()

	if s := m.State(); pred(s) {
		return s
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if pred(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("Timeout waiting for state, last: %+v", m.State())
		}
	}
}

func settled(s State) bool { return !s.Loading }

// blockingSource wraps a Hub but holds the bootstrap session query until
// released, so events can be injected while the query is in flight.
type blockingSource struct {
	hub      *identity.Hub
	entered  chan struct{} // closed once CurrentSession is running
	release  chan struct{}
	enterOne sync.Once
}

func newBlockingSource(hub *identity.Hub) *blockingSource {
	return &blockingSource{
		hub:     hub,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingSource) CurrentSession(ctx context.Context) (*identity.Identity, error) {
	b.enterOne.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, nil
}

func (b *blockingSource) OnSessionChange(fn identity.Handler) func() {
	return b.hub.OnSessionChange(fn)
}

func (b *blockingSource) SignOut(ctx context.Context) error {
	return b.hub.SignOut(ctx)
}

func TestSlowBootstrapDoesNotClobberFresherEvent(t *testing.T) {
	hub := identity.NewHub()
	src := newBlockingSource(hub)
	m := New(src, &fakeLookup{})
	defer m.Close()

	go m.Start(context.Background())
	<-src.entered // the event subscription is in place once the query runs

	// A sign-in lands while the bootstrap query is still in flight and
	// settles authorized.
	hub.SignIn(&identity.Identity{ID: "uB", Email: "bob@x.com"})
	s := awaitState(t, m, func(s State) bool { return !s.Loading && s.SignedIn() })
	if !s.Authorized() {
		t.Fatalf("Expected bob authorized before bootstrap returns, got %+v", s)
	}

	// The bootstrap's "no session" answer arrives late; it must be
	// discarded, not applied over the fresher settled state.
	close(src.release)
	time.Sleep(50 * time.Millisecond)

	final := m.State()
	if !final.SignedIn() || final.Identity.Email != "bob@x.com" {
		t.Errorf("Stale bootstrap answer clobbered the settled sign-in: %+v", final)
	}
	if !final.Authorized() {
		t.Errorf("Stale bootstrap answer dropped authorization: %+v", final)
	}
}

func TestBootstrapNoIdentity(t *testing.T) {
	hub := identity.NewHub()
	m := New(hub, &fakeLookup{})
	defer m.Close()

	m.Start(context.Background())

	s := m.State()
	if s.Loading || s.SignedIn() || s.Authorized() || s.Admin() {
		t.Errorf("Expected signed-out settled state, got %+v", s)
	}
}

func TestBootstrapWithIdentityResolves(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "carol@x.com", Name: "Carol"})

	lookup := &fakeLookup{}
	m := New(hub, lookup)
	defer m.Close()

	m.Start(context.Background())
	s := awaitState(t, m, settled)

	if !s.SignedIn() || s.Identity.Email != "carol@x.com" {
		t.Errorf("Expected carol signed in, got %+v", s)
	}
	if !s.Authorized() {
		t.Error("Expected carol authorized")
	}
}

func TestSuccessfulLookupWritesCache(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "carol@x.com"})

	cache := authcache.New(nil)
	m := New(hub, &fakeLookup{}, WithCache(cache))
	defer m.Close()

	m.Start(context.Background())
	awaitState(t, m, settled)

	if rec := cache.Get(context.Background(), "carol@x.com"); rec == nil || !rec.Authorized {
		t.Errorf("Expected cache warmed for carol, got %+v", rec)
	}
}

func TestCacheHitSkipsRemoteLookup(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "carol@x.com"})

	cache := authcache.New(nil)
	cache.Set(context.Background(), "carol@x.com", authz.Record{Authorized: true})

	lookup := &fakeLookup{}
	m := New(hub, lookup, WithCache(cache))
	defer m.Close()

	m.Start(context.Background())
	s := awaitState(t, m, settled)

	if !s.Authorized() {
		t.Errorf("Expected authorized from cache, got %+v", s)
	}
	if lookup.calls() != 0 {
		t.Errorf("Expected no remote lookups on cache hit, got %d", lookup.calls())
	}
}

func TestFailClosedWhenBothAttemptsFail(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "frank@x.com"})

	boom := errors.New("store unreachable")
	lookup := &fakeLookup{
		authFn: func(call int, email string) (bool, error) { return false, boom },
	}
	m := New(hub, lookup, WithRetryDelay(5*time.Millisecond))
	defer m.Close()

	m.Start(context.Background())
	s := awaitState(t, m, settled)

	if s.Authorized() || s.Admin() {
		t.Errorf("Expected fail-closed state, got %+v", s)
	}
	if lookup.calls() != 2 {
		t.Errorf("Expected exactly one retry (2 calls), got %d", lookup.calls())
	}
}

func TestRetrySuccessOverridesFirstFailure(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "dave@x.com"})

	lookup := &fakeLookup{
		authFn: func(call int, email string) (bool, error) {
			if call == 1 {
				return false, errors.New("transient")
			}
			return true, nil
		},
	}
	m := New(hub, lookup, WithRetryDelay(5*time.Millisecond))
	defer m.Close()

	m.Start(context.Background())
	s := awaitState(t, m, settled)

	if !s.Authorized() {
		t.Errorf("Expected retry success to authorize dave, got %+v", s)
	}
}

func TestStaleCacheServedWhenLookupUnreachable(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "grace@x.com"})

	// Seed an entry stamped two hours in the past: expired for the fast
	// path, still served as the degraded fallback.
	kv := authcache.NewMemoryKV()
	past := time.Now().Add(-2 * time.Hour)
	seed := authcache.New(kv, authcache.WithClock(func() time.Time { return past }))
	seed.Set(context.Background(), "grace@x.com", authz.Record{Authorized: true})

	lookup := &fakeLookup{
		authFn: func(call int, email string) (bool, error) {
			return false, errors.New("store unreachable")
		},
	}
	m := New(hub, lookup, WithCache(authcache.New(kv)), WithRetryDelay(5*time.Millisecond))
	defer m.Close()

	m.Start(context.Background())
	s := awaitState(t, m, settled)

	if !s.Authorized() {
		t.Errorf("Expected stale cache fallback to authorize grace, got %+v", s)
	}
}

func TestTimeoutReachesLoadingFalse(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "eve@x.com"})

	lookup := &fakeLookup{
		authFn: func(call int, email string) (bool, error) {
			// Well past the 50ms ceiling below.
			<-time.After(500 * time.Millisecond)
			return true, nil
		},
		profFn: func(call int, email string) (*authz.Profile, error) {
			<-time.After(500 * time.Millisecond)
			return nil, nil
		},
	}
	m := New(hub, lookup, WithResolveTimeout(50*time.Millisecond))
	defer m.Close()

	m.Start(context.Background())
	s := awaitState(t, m, settled)

	if s.Loading {
		t.Error("Expected loading to drop on timeout")
	}
	if !s.SignedIn() || s.Identity.Email != "eve@x.com" {
		t.Errorf("Timeout must preserve held identity, got %+v", s)
	}
	if s.Authorized() {
		t.Error("Nothing was ever known; expected unauthorized default")
	}
}

func TestSupersessionDiscardsStaleResult(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "uA", Email: "alice@x.com"})

	release := make(chan struct{})
	lookup := &fakeLookup{
		authFn: func(call int, email string) (bool, error) {
			if email == "alice@x.com" {
				<-release // hold A's resolution until B has taken over
				return true, nil
			}
			return false, nil
		},
	}
	m := New(hub, lookup)
	defer m.Close()

	m.Start(context.Background())

	// Identity changes to B before A's resolution completes.
	hub.SignIn(&identity.Identity{ID: "uB", Email: "bob@x.com"})
	s := awaitState(t, m, func(s State) bool {
		return !s.Loading && s.Identity != nil && s.Identity.Email == "bob@x.com"
	})
	if s.Authorized() {
		t.Errorf("Expected bob unauthorized, got %+v", s)
	}

	// A's resolution now finishes "authorized"; it must not be applied.
	close(release)
	time.Sleep(50 * time.Millisecond)

	final := m.State()
	if final.Identity == nil || final.Identity.Email != "bob@x.com" {
		t.Errorf("Stale result overwrote identity: %+v", final)
	}
	if final.Authorized() {
		t.Errorf("Stale authorized result applied after supersession: %+v", final)
	}
}

func TestSignOutClearsCacheAndState(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "u1", Email: "carol@x.com"})

	cache := authcache.New(nil)
	m := New(hub, &fakeLookup{}, WithCache(cache))
	defer m.Close()

	m.Start(context.Background())
	awaitState(t, m, func(s State) bool { return !s.Loading && s.Authorized() })

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	s := awaitState(t, m, func(s State) bool { return !s.SignedIn() && !s.Loading })
	if s.Authorized() || s.Admin() {
		t.Errorf("Expected cleared state after sign-out, got %+v", s)
	}
	if rec := cache.Get(context.Background(), "carol@x.com"); rec != nil {
		t.Errorf("Expected cache cleared on sign-out, got %+v", rec)
	}
}

func TestDuplicateTriggerAttachesToInflight(t *testing.T) {
	hub := identity.NewHub()

	release := make(chan struct{})
	lookup := &fakeLookup{
		authFn: func(call int, email string) (bool, error) {
			<-release
			return true, nil
		},
		profFn: func(call int, email string) (*authz.Profile, error) {
			<-release
			return &authz.Profile{ID: "u1", Email: email}, nil
		},
	}
	m := New(hub, lookup)
	defer m.Close()

	m.Start(context.Background())

	// Rapid repeated events for the same email, as a route change storm
	// would produce. Only one remote lookup may be issued.
	carol := &identity.Identity{ID: "u1", Email: "carol@x.com"}
	hub.SignIn(carol)
	hub.Publish(identity.EventTokenRefreshed, carol)
	hub.Publish(identity.EventTokenRefreshed, carol)

	time.Sleep(20 * time.Millisecond)
	if n := lookup.calls(); n != 1 {
		t.Errorf("Expected a single in-flight lookup, got %d", n)
	}

	close(release)
	s := awaitState(t, m, settled)
	if !s.Authorized() {
		t.Errorf("Expected attached triggers to settle authorized, got %+v", s)
	}
}

func TestIdentityChangeDoesNotReuseOtherEmailCache(t *testing.T) {
	hub := identity.NewHub()
	hub.SignIn(&identity.Identity{ID: "uA", Email: "alice@x.com"})

	cache := authcache.New(nil)
	lookup := &fakeLookup{
		authFn: func(call int, email string) (bool, error) {
			return email == "alice@x.com", nil
		},
	}
	m := New(hub, lookup, WithCache(cache))
	defer m.Close()

	m.Start(context.Background())
	awaitState(t, m, func(s State) bool { return !s.Loading && s.Authorized() })

	// A different account signs in without an intervening sign-out.
	hub.SignIn(&identity.Identity{ID: "uB", Email: "bob@x.com"})
	s := awaitState(t, m, func(s State) bool {
		return !s.Loading && s.Identity != nil && s.Identity.Email == "bob@x.com"
	})

	if s.Authorized() {
		t.Errorf("Alice's cache entry leaked to bob: %+v", s)
	}
}

func TestStateBeforeStartIsBootstrapping(t *testing.T) {
	m := New(identity.NewHub(), &fakeLookup{})
	defer m.Close()

	s := m.State()
	if !s.Loading || s.SignedIn() {
		t.Errorf("Expected bootstrapping state before Start, got %+v", s)
	}
}

func TestCloseStopsEventHandling(t *testing.T) {
	hub := identity.NewHub()
	lookup := &fakeLookup{}
	m := New(hub, lookup)

	m.Start(context.Background())
	m.Close()

	hub.SignIn(&identity.Identity{ID: "u1", Email: "carol@x.com"})
	time.Sleep(20 * time.Millisecond)

	if s := m.State(); s.SignedIn() {
		t.Errorf("Closed machine applied an event: %+v", s)
	}
}
