package asynchook

import (
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/arcache"
)

type countHooks struct {
	arcache.NopHooks
	mu      sync.Mutex
	written []string
	block   chan struct{}
}

func (c *countHooks) InvalidationWritten(g string, _ bool) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.written = append(c.written, g)
	c.mu.Unlock()
}

func TestDeliversAndDrainsOnClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 16)
	for i := 0; i < 10; i++ {
		h.InvalidationWritten("g", false)
	}
	h.Close()
	if len(inner.written) != 10 {
		t.Fatalf("delivered %d, want 10", len(inner.written))
	}
	h.InvalidationWritten("late", true)
	if h.Dropped() != 1 {
		t.Fatalf("call after Close should be dropped, dropped=%d", h.Dropped())
	}
	h.Close()
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	start := time.Now()
	for i := 0; i < 5; i++ {
		h.InvalidationWritten("g", false)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("hook calls blocked the caller")
	}
	close(inner.block)
	h.Close()

	if got := uint64(len(inner.written)) + h.Dropped(); got != 5 {
		t.Fatalf("delivered+dropped = %d, want 5", got)
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a one-slot queue")
	}
}
