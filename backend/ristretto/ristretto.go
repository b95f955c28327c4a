// Package ristretto stores arcache entries in a dgraph-io/ristretto cache.
//
// Entries are kept in wire form and cost their encoded size, so MaxCost is a
// byte budget.
package ristretto

import (
	"context"
	"errors"
	"fmt"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/arcache/backend"
	"github.com/unkn0wn-root/arcache/internal/wire"
)

type Backend struct {
	c *rc.Cache
}

var _ backend.Client = (*Backend)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) (any, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, nil
	}
	raw, _ := v.([]byte)
	if raw == nil {
		// self-heal: drop unexpected entry shape
		b.c.Del(key)
		return nil, nil
	}
	return wire.Load(raw), nil
}

// Set is admitted asynchronously by ristretto: a true result means the write
// was buffered, not that it is already visible. ok=false means it was dropped.
func (b *Backend) Set(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: empty key", backend.ErrInvalidArgument)
	}
	raw, err := wire.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: %v", backend.ErrInvalidArgument, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return b.c.SetWithTTL(key, raw, int64(len(raw)), ttl), nil
}

func (b *Backend) Del(_ context.Context, key string) error {
	b.c.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied.
func (b *Backend) Wait() { b.c.Wait() }

func (b *Backend) Close(_ context.Context) error {
	b.c.Wait()
	b.c.Close()
	return nil
}

// Metrics exposes ristretto's counters when Config.Metrics is set.
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }
