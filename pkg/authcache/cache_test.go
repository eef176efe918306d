package authcache

import (
	"context"
	"testing"
	"time"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
)

// fixedClock returns a clock pinned to base plus an adjustable offset.
func fixedClock(base time.Time) (now func() time.Time, advance func(time.Duration)) {
	offset := time.Duration(0)
	return func() time.Time { return base.Add(offset) },
		func(d time.Duration) { offset += d }
}

func TestGetBeforeFirstWrite(t *testing.T) {
	c := New(nil)
	if rec := c.Get(context.Background(), "alice@x.com"); rec != nil {
		t.Errorf("Expected nil from empty cache, got %+v", rec)
	}
}

func TestSetThenGet(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	c.Set(ctx, "alice@x.com", authz.Record{Authorized: true, Admin: true,
		Profile: &authz.Profile{ID: "u1", Email: "alice@x.com", Name: "Alice", Admin: true}})

	rec := c.Get(ctx, "alice@x.com")
	if rec == nil {
		t.Fatal("Expected cached record, got nil")
	}
	if !rec.Authorized || !rec.Admin {
		t.Errorf("Expected authorized admin record, got %+v", rec)
	}
	if rec.Profile == nil || rec.Profile.Name != "Alice" {
		t.Errorf("Expected profile roundtrip, got %+v", rec.Profile)
	}
}

func TestEmailBinding(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	c.Set(ctx, "alice@x.com", authz.Record{Authorized: true})

	if rec := c.Get(ctx, "bob@x.com"); rec != nil {
		t.Errorf("Entry for alice served to bob: %+v", rec)
	}
	if rec := c.Get(ctx, "alice@x.com"); rec == nil {
		t.Error("Entry for alice should still be served to alice")
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	now, advance := fixedClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	c := New(nil, WithClock(now))

	c.Set(ctx, "alice@x.com", authz.Record{Authorized: true})

	advance(29 * time.Minute)
	if rec := c.Get(ctx, "alice@x.com"); rec == nil {
		t.Error("Entry aged 29m should be valid")
	}

	advance(1 * time.Minute) // exactly 30m: expired, strict < validity
	if rec := c.Get(ctx, "alice@x.com"); rec != nil {
		t.Errorf("Entry aged exactly 30m should be expired, got %+v", rec)
	}

	advance(1 * time.Minute)
	if rec := c.Get(ctx, "alice@x.com"); rec != nil {
		t.Errorf("Entry aged 31m should be expired, got %+v", rec)
	}
}

func TestGetStaleIgnoresTTLButNotEmail(t *testing.T) {
	ctx := context.Background()
	now, advance := fixedClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	c := New(nil, WithClock(now))

	c.Set(ctx, "alice@x.com", authz.Record{Authorized: true})
	advance(2 * time.Hour)

	if rec := c.Get(ctx, "alice@x.com"); rec != nil {
		t.Errorf("Expected expired entry to miss on Get, got %+v", rec)
	}
	if rec := c.GetStale(ctx, "alice@x.com"); rec == nil || !rec.Authorized {
		t.Errorf("Expected GetStale to serve expired entry, got %+v", rec)
	}
	if rec := c.GetStale(ctx, "bob@x.com"); rec != nil {
		t.Errorf("GetStale must still enforce email binding, got %+v", rec)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	c.Set(ctx, "alice@x.com", authz.Record{Authorized: true})
	c.Clear(ctx)

	if rec := c.Get(ctx, "alice@x.com"); rec != nil {
		t.Errorf("Expected nil after Clear, got %+v", rec)
	}
}

func TestOverwriteRebindsEmail(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	c.Set(ctx, "alice@x.com", authz.Record{Authorized: true})
	c.Set(ctx, "bob@x.com", authz.Record{Authorized: false})

	if rec := c.Get(ctx, "alice@x.com"); rec != nil {
		t.Errorf("Slot rebound to bob, alice must miss: %+v", rec)
	}
	rec := c.Get(ctx, "bob@x.com")
	if rec == nil || rec.Authorized {
		t.Errorf("Expected bob's unauthorized record, got %+v", rec)
	}
}

func TestCorruptSlotReadsAsMiss(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	kv.Store(ctx, slotKey, []byte("{not json"))

	c := New(kv)
	if rec := c.Get(ctx, "alice@x.com"); rec != nil {
		t.Errorf("Expected miss on corrupt slot, got %+v", rec)
	}

	// The corrupt value is dropped, not left to fail every read.
	raw, _ := kv.Load(ctx, slotKey)
	if raw != nil {
		t.Error("Expected corrupt slot to be cleared")
	}
}

func TestFileKVRoundtrip(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}

	if v, err := kv.Load(ctx, "k"); err != nil || v != nil {
		t.Fatalf("Expected (nil, nil) for missing key, got (%v, %v)", v, err)
	}
	if err := kv.Store(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	v, err := kv.Load(ctx, "k")
	if err != nil || string(v) != `{"a":1}` {
		t.Fatalf("Load after Store = (%s, %v)", v, err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete of missing key should be nil, got %v", err)
	}
	if v, _ := kv.Load(ctx, "k"); v != nil {
		t.Errorf("Expected nil after delete, got %s", v)
	}
}

func TestCacheOverFileKV(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}

	c := New(kv)
	c.Set(ctx, "alice@x.com", authz.Record{Authorized: true})

	// A second Cache over the same directory sees the entry, the way a
	// restarted process would.
	c2 := New(kv)
	if rec := c2.Get(ctx, "alice@x.com"); rec == nil || !rec.Authorized {
		t.Errorf("Expected persisted record, got %+v", rec)
	}
}
