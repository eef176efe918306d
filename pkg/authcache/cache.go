package authcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
)

// DefaultTTL bounds how stale a served authorization result can be.
const DefaultTTL = 30 * time.Minute

// slotKey is the single KV key the cache occupies.
const slotKey = "tasktwin_auth_cache"

// entry is the serialized cache slot.
type entry struct {
	Email     string         `json:"email"`
	Record    recordPayload  `json:"record"`
	Profile   *authz.Profile `json:"profile,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

type recordPayload struct {
	Authorized bool `json:"authorized"`
	Admin      bool `json:"is_admin"`
}

// Cache is a single-slot, TTL-boxed memo of an authorization record.
// It is safe to read before it has ever been written.
type Cache struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the entry lifetime. Default: 30 minutes.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock injects the time source. Used by tests to pin entry ages.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Cache over kv. A nil kv falls back to an in-memory slot.
func New(kv KV, opts ...Option) *Cache {
	if kv == nil {
		kv = NewMemoryKV()
	}
	c := &Cache{
		kv:  kv,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached record for email, or nil if the slot is empty,
// expired, or bound to a different email. An entry at exactly TTL age is
// expired.
func (c *Cache) Get(ctx context.Context, email string) *authz.Record {
	raw, err := c.kv.Load(ctx, slotKey)
	if err != nil {
		slog.Debug("authcache: load failed", "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt slot: treat as a miss and drop it.
		slog.Warn("authcache: corrupt entry dropped", "error", err)
		c.Clear(ctx)
		return nil
	}

	if e.Email != email {
		return nil
	}
	if c.now().Sub(e.FetchedAt) >= c.ttl {
		return nil
	}

	return &authz.Record{
		Authorized: e.Record.Authorized,
		Admin:      e.Record.Admin,
		Profile:    e.Profile,
	}
}

// GetStale returns the cached record for email regardless of age. Email
// binding still applies. Used as a degraded fallback when the remote
// lookup cannot be reached; serving stale data beats locking the user out.
func (c *Cache) GetStale(ctx context.Context, email string) *authz.Record {
	raw, err := c.kv.Load(ctx, slotKey)
	if err != nil || raw == nil {
		return nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil
	}
	if e.Email != email {
		return nil
	}
	return &authz.Record{
		Authorized: e.Record.Authorized,
		Admin:      e.Record.Admin,
		Profile:    e.Profile,
	}
}

// Set stores rec keyed by email, stamped with the current time.
func (c *Cache) Set(ctx context.Context, email string, rec authz.Record) {
	raw, err := json.Marshal(entry{
		Email: email,
		Record: recordPayload{
			Authorized: rec.Authorized,
			Admin:      rec.Admin,
		},
		Profile:   rec.Profile,
		FetchedAt: c.now(),
	})
	if err != nil {
		slog.Warn("authcache: marshal failed", "error", err)
		return
	}
	if err := c.kv.Store(ctx, slotKey, raw); err != nil {
		slog.Debug("authcache: store failed", "error", err)
	}
}

// Clear empties the slot. Called on sign-out.
func (c *Cache) Clear(ctx context.Context) {
	if err := c.kv.Delete(ctx, slotKey); err != nil {
		slog.Debug("authcache: delete failed", "error", err)
	}
}
