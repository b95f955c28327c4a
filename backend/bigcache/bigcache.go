// Package bigcache stores arcache entries in an allegro/bigcache instance.
//
// BigCache has no per-entry TTL: every entry lives for LifeWindow regardless
// of the ttl passed to Set. Pick a LifeWindow close to the client's removal
// time.
package bigcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/arcache/backend"
	"github.com/unkn0wn-root/arcache/internal/wire"
)

type Backend struct {
	c *bc.BigCache
}

var _ backend.Client = (*Backend)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Backend, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: LifeWindow must be > 0")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) (any, error) {
	raw, err := b.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wire.Load(raw), nil
}

func (b *Backend) Set(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: empty key", backend.ErrInvalidArgument)
	}
	raw, err := wire.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: %v", backend.ErrInvalidArgument, err)
	}
	if err := b.c.Set(key, raw); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Del(_ context.Context, key string) error {
	err := b.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (b *Backend) Len() int { return b.c.Len() }

func (b *Backend) Close(_ context.Context) error {
	return b.c.Close()
}
