package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/arcache/backend"
	"github.com/unkn0wn-root/arcache/entry"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSetGetAndExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1000, 0)}
	m := New(Config{Now: clk.Now})
	defer m.Close(ctx)

	o := &entry.Object{Value: []byte("v")}
	if ok, err := m.Set(ctx, "k", o, time.Minute); !ok || err != nil {
		t.Fatalf("Set = (%v, %v)", ok, err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || got != o {
		t.Fatalf("Get = (%v, %v), want the stored pointer", got, err)
	}

	clk.Advance(time.Minute)
	if got, _ := m.Get(ctx, "k"); got != nil {
		t.Fatalf("expired entry returned: %v", got)
	}
	if m.Len() != 0 {
		t.Fatalf("Len=%d want 0", m.Len())
	}
	m.Sweep()
	m.mu.RLock()
	n := len(m.items)
	m.mu.RUnlock()
	if n != 0 {
		t.Fatalf("Sweep left %d items", n)
	}
}

func TestStoresArbitraryValues(t *testing.T) {
	ctx := context.Background()
	m := New(Config{Isolation: true})
	defer m.Close(ctx)

	if _, err := m.Set(ctx, "s", "plain string", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := m.Get(ctx, "s"); v != "plain string" {
		t.Fatalf("Get=%v", v)
	}

	// raw bytes must come back as bytes, never decoded
	if _, err := m.Set(ctx, "b", []byte("ARCE"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := m.Get(ctx, "b"); string(v.([]byte)) != "ARCE" {
		t.Fatalf("Get=%v", v)
	}
}

func TestIsolationCopies(t *testing.T) {
	ctx := context.Background()
	m := New(Config{Isolation: true})
	defer m.Close(ctx)

	o := &entry.Object{Value: []byte("abc"), InvalidationKeys: []string{"g"}, TimestampMillis: 5}
	if _, err := m.Set(ctx, "k", o, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	o.Value[0] = 'X'

	v, _ := m.Get(ctx, "k")
	got, ok := v.(*entry.Object)
	if !ok {
		t.Fatalf("Get type %T", v)
	}
	if string(got.Value) != "abc" || got.TimestampMillis != 5 || got.InvalidationKeys[0] != "g" {
		t.Fatalf("stored entry mutated or mangled: %+v", got)
	}
	got.Value[1] = 'Y'
	v2, _ := m.Get(ctx, "k")
	if string(v2.(*entry.Object).Value) != "abc" {
		t.Fatalf("reader mutation leaked into store")
	}

	inv := &entry.Invalidation{InvalidationTimestampMillis: 9, Hard: true}
	if _, err := m.Set(ctx, "i", inv, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := m.Get(ctx, "i"); *v.(*entry.Invalidation) != *inv {
		t.Fatalf("invalidation mismatch: %+v", v)
	}
}

func TestSetValidation(t *testing.T) {
	ctx := context.Background()
	m := New(Config{})
	defer m.Close(ctx)

	if _, err := m.Set(ctx, "", "x", 0); !errors.Is(err, backend.ErrInvalidArgument) {
		t.Fatalf("empty key err=%v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.Get(cctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get on cancelled ctx err=%v", err)
	}

	m.Set(ctx, "k", "v", 0)
	if ok, err := m.Set(ctx, "k", nil, 0); !ok || err != nil {
		t.Fatalf("Set(nil) = (%v, %v)", ok, err)
	}
	if v, _ := m.Get(ctx, "k"); v != nil {
		t.Fatalf("nil Set should delete, got %v", v)
	}
}

func TestClearAndSweepLoop(t *testing.T) {
	ctx := context.Background()
	m := New(Config{SweepInterval: 5 * time.Millisecond})

	m.Set(ctx, "a", 1, time.Millisecond)
	m.Set(ctx, "b", 2, 0)
	deadline := time.Now().Add(time.Second)
	for {
		m.mu.RLock()
		_, still := m.items["a"]
		m.mu.RUnlock()
		if !still {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweep loop did not remove expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("Len after Clear = %d", m.Len())
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
