// Package memory is an in-process backend.
//
// Values are kept as-is, so any Go value can be stored and read back. With
// Isolation enabled, entry types are framed on Set and decoded on Get, which
// hands every reader its own copy.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/arcache/backend"
	"github.com/unkn0wn-root/arcache/entry"
	"github.com/unkn0wn-root/arcache/internal/wire"
)

// framed marks wire-encoded entries so plain []byte values stay untouched.
type framed []byte

type item struct {
	v        any
	expireAt time.Time // zero = never
}

type Config struct {
	// SweepInterval enables a background loop that drops expired entries.
	// Expired entries are never returned either way; 0 disables the loop.
	SweepInterval time.Duration
	// Isolation stores entry types in wire form.
	Isolation bool
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

type Memory struct {
	mu    sync.RWMutex
	items map[string]item

	isolation bool
	now       func() time.Time

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ backend.Client = (*Memory)(nil)

func New(cfg Config) *Memory {
	m := &Memory{
		items:     make(map[string]item),
		isolation: cfg.Isolation,
		now:       cfg.Now,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if cfg.SweepInterval > 0 {
		m.ticker = time.NewTicker(cfg.SweepInterval)
		m.stopCh = make(chan struct{})
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-m.ticker.C:
					m.Sweep()
				case <-m.stopCh:
					return
				}
			}
		}()
	}
	return m
}

func (m *Memory) Get(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || m.expired(it) {
		return nil, nil
	}
	if b, ok := it.v.(framed); ok {
		return wire.Load(b), nil
	}
	return it.v, nil
}

func (m *Memory) Set(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if key == "" {
		return false, fmt.Errorf("%w: empty key", backend.ErrInvalidArgument)
	}
	if value == nil {
		m.Del(key)
		return true, nil
	}

	v := value
	if m.isolation {
		switch value.(type) {
		case *entry.Object, *entry.Invalidation:
			b, err := wire.Marshal(value)
			if err != nil {
				return false, fmt.Errorf("%w: %v", backend.ErrInvalidArgument, err)
			}
			v = framed(b)
		}
	}

	it := item{v: v}
	if ttl > 0 {
		it.expireAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = it
	m.mu.Unlock()
	return true, nil
}

// Del removes key. Missing keys are ignored.
func (m *Memory) Del(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.items = make(map[string]item)
	m.mu.Unlock()
}

// Len counts live entries.
func (m *Memory) Len() int {
	n := 0
	m.mu.RLock()
	for _, it := range m.items {
		if !m.expired(it) {
			n++
		}
	}
	m.mu.RUnlock()
	return n
}

// Sweep drops expired entries.
func (m *Memory) Sweep() {
	now := m.now()
	m.mu.Lock()
	for k, it := range m.items {
		if !it.expireAt.IsZero() && !now.Before(it.expireAt) {
			delete(m.items, k)
		}
	}
	m.mu.Unlock()
}

func (m *Memory) Close(_ context.Context) error {
	m.closeOnce.Do(func() {
		if m.stopCh != nil {
			close(m.stopCh)
			m.ticker.Stop()
			m.wg.Wait()
		}
	})
	return nil
}

func (m *Memory) expired(it item) bool {
	return !it.expireAt.IsZero() && !m.now().Before(it.expireAt)
}
