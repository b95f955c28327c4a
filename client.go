package arcache

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/unkn0wn-root/arcache/backend"
	c "github.com/unkn0wn-root/arcache/codec"
	"github.com/unkn0wn-root/arcache/entry"
	"github.com/unkn0wn-root/arcache/future"
	"github.com/unkn0wn-root/arcache/probability"
)

// core is the configuration shared by the client and its tasks.
type core struct {
	backend    backend.Client
	invBackend backend.Client
	keys       KeyBuilder

	timeout   time.Duration
	relax     bool
	tmeMillis int64
	window    time.Duration
	hard      bool

	expiration time.Duration
	removal    time.Duration

	expFn probability.Func
	invFn probability.Func
	rnd   func() float64
	now   func() time.Time

	log   Logger
	hooks Hooks
}

type client[V any] struct {
	*core
	codec   c.Codec[V]
	enabled bool

	sharedBackend bool
	closeOnce     sync.Once
	closeErr      error
}

var _ Client[struct{}] = (*client[struct{}])(nil)

func newClient[V any](opts Options[V]) (*client[V], error) {
	if opts.Backend == nil {
		return nil, invalidArg("backend is required")
	}
	if opts.Codec == nil {
		return nil, invalidArg("codec is required")
	}
	for name, d := range map[string]time.Duration{
		"OperationTimeout":     opts.OperationTimeout,
		"TimeMeasurementError": opts.TimeMeasurementError,
		"InvalidationWindow":   opts.InvalidationWindow,
		"ExpirationTime":       opts.ExpirationTime,
		"RemovalTime":          opts.RemovalTime,
	} {
		if d < 0 {
			return nil, invalidArg("%s must be >= 0, got %v", name, d)
		}
	}

	core := &core{
		backend:    opts.Backend,
		invBackend: opts.InvalidationBackend,
		keys:       NewKeyBuilder(opts.Namespace, opts.KeyDelimiter),
		relax:      !opts.DisableTimeoutRelax,
		tmeMillis:  opts.TimeMeasurementError.Milliseconds(),
		window:     opts.InvalidationWindow,
		hard:       opts.HardInvalidation,
		now:        time.Now,
	}
	if core.invBackend == nil {
		core.invBackend = opts.Backend
	}

	core.timeout = coalesce(opts.OperationTimeout, defaultOperationTimeout)
	core.expiration = coalesce(opts.ExpirationTime, defaultExpirationTime)
	core.removal = coalesce(opts.RemovalTime, defaultRemovalTime)
	core.log = coalesce[Logger](opts.Logger, NopLogger{})
	core.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	core.expFn = opts.ExpirationProbability
	if core.expFn == nil {
		core.expFn = defaultExpirationProbability
	}
	core.invFn = opts.InvalidationProbability
	if core.invFn == nil {
		core.invFn = defaultInvalidationProbability
	}
	core.rnd = opts.Rand
	if core.rnd == nil {
		core.rnd = rand.Float64
	}

	return &client[V]{
		core:          core,
		codec:         opts.Codec,
		enabled:       !opts.Disabled,
		sharedBackend: core.invBackend == core.backend,
	}, nil
}

func (cl *client[V]) Enabled() bool    { return cl.enabled }
func (cl *client[V]) Keys() KeyBuilder { return cl.keys }

// Close closes the backend, and the invalidation backend when it is a
// different one. Later calls return the first result.
func (cl *client[V]) Close(ctx context.Context) error {
	cl.closeOnce.Do(func() {
		err := cl.backend.Close(ctx)
		if !cl.sharedBackend {
			err = errors.Join(err, cl.invBackend.Close(ctx))
		}
		cl.closeErr = err
	})
	return cl.closeErr
}

func (cl *client[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	r := cl.GetCacheObject(ctx, key)
	switch r.Type {
	case Hit:
		return r.Value, true, nil
	case Timeout, Error:
		return zero, false, r.Err
	default:
		return zero, false, nil
	}
}

func (cl *client[V]) GetCacheObject(ctx context.Context, key string) Result[V] {
	return cl.GetCacheObjectTimeout(ctx, key, cl.timeout)
}

func (cl *client[V]) GetCacheObjectTimeout(ctx context.Context, key string, timeout time.Duration) Result[V] {
	if timeout < 0 {
		return Result[V]{Type: Error, Err: invalidArg("negative timeout %v", timeout)}
	}
	if timeout == 0 && key != "" && cl.enabled {
		// no budget: nothing is fetched
		return Result[V]{Type: Timeout, Err: ErrTimeout}
	}
	t, err := cl.AsyncGetCacheObject(ctx, key)
	if err != nil {
		return Result[V]{Type: Error, Err: err}
	}
	// releases outstanding fetches when Await gives up
	defer t.Cancel()

	r, err := t.Await(ctx, timeout)
	if err != nil {
		return errResult[V](err)
	}
	return r
}

func (cl *client[V]) AsyncGetCacheObject(ctx context.Context, key string) (*GetTask[V], error) {
	if key == "" {
		return nil, invalidArg("empty key")
	}
	if !cl.enabled {
		return doneGetTask(key, Result[V]{Type: Miss}), nil
	}
	return newGetTask(ctx, cl.core, cl.codec, key), nil
}

func (cl *client[V]) Set(ctx context.Context, key string, value V, groups ...string) error {
	f, err := cl.AsyncSet(ctx, key, value, groups...)
	if err != nil {
		return err
	}
	defer f.Cancel()

	b := &budget{start: time.Now(), timeout: cl.timeout, relax: cl.relax, hooks: cl.hooks}
	if _, err := waitFor(ctx, b, f); err != nil {
		_, err = classify(err)
		return err
	}
	return nil
}

func (cl *client[V]) AsyncSet(ctx context.Context, key string, value V, groups ...string) (*future.Future[bool], error) {
	if key == "" {
		return nil, invalidArg("empty key")
	}
	for _, g := range groups {
		if g == "" {
			return nil, invalidArg("empty invalidation group for key %q", key)
		}
	}
	if !cl.enabled {
		return future.Resolved(false, nil), nil
	}

	payload, err := cl.codec.Encode(value)
	if err != nil {
		return nil, err
	}
	o := &entry.Object{
		Value:               payload,
		TimestampMillis:     cl.now().UnixMilli(),
		ExpirationTTLMillis: cl.expiration.Milliseconds(),
		InvalidationKeys:    slices.Clone(groups),
	}
	bk := cl.keys.BackendKey(key)
	return future.Go(ctx, func(ctx context.Context) (bool, error) {
		ok, err := cl.backend.Set(ctx, bk, o, cl.removal)
		if err != nil {
			return false, err
		}
		if !ok {
			cl.hooks.BackendSetRejected(bk)
			cl.log.Debug("Set rejected by backend (pressure)", Fields{"key": key})
		}
		return ok, nil
	}), nil
}

func (cl *client[V]) InvalidateKey(ctx context.Context, group string, opts ...InvalidateOption) error {
	t, err := cl.AsyncInvalidateKey(ctx, group, opts...)
	if err != nil {
		return err
	}
	defer t.Cancel()

	if _, err := t.Await(ctx, cl.timeout); err != nil {
		_, err = classify(err)
		return &InvalidateError{Group: group, Err: err}
	}
	return nil
}

func (cl *client[V]) AsyncInvalidateKey(ctx context.Context, group string, opts ...InvalidateOption) (*InvalidateTask, error) {
	if group == "" {
		return nil, invalidArg("empty invalidation group")
	}
	p := invalidateParams{hard: cl.hard, window: cl.window}
	for _, o := range opts {
		o(&p)
	}
	if p.window < 0 {
		return nil, invalidArg("negative invalidation window %v", p.window)
	}
	if !cl.enabled {
		return doneInvalidateTask(group, false), nil
	}
	return newInvalidateTask(ctx, cl.core, group, p), nil
}
