// Package redis stores arcache entries in Redis through go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/arcache/backend"
	"github.com/unkn0wn-root/arcache/internal/wire"
)

var ErrNilClient = errors.New("redis backend: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ backend.Client = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (any, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wire.Load(b), nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: empty key", backend.ErrInvalidArgument)
	}
	b, err := wire.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: %v", backend.ErrInvalidArgument, err)
	}
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	if err := r.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Del removes a key (best-effort).
func (r *Redis) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
