package arcache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	c "github.com/unkn0wn-root/arcache/codec"
	"github.com/unkn0wn-root/arcache/entry"
	"github.com/unkn0wn-root/arcache/future"
)

// GetTask is an in-flight read. The object fetch starts when the task is
// created; Await drives the rest (group records, decision, decoding).
//
// A completed task memoizes its Result. An Await that fails with a timeout or
// a backend fault leaves the task resumable: the next Await reuses the
// fetches already issued. Cancel aborts every fetch and is final.
type GetTask[V any] struct {
	key        string
	backendKey string
	core       *core
	codec      c.Codec[V]

	ctx    context.Context
	cancel context.CancelFunc

	run sync.Mutex // one Await at a time

	mu        sync.Mutex
	cancelled bool
	done      bool
	result    Result[V]

	// guarded by run
	envelope *future.Future[any]
	records  map[string]*future.Future[any]
}

func newGetTask[V any](ctx context.Context, core *core, cd c.Codec[V], key string) *GetTask[V] {
	tctx, cancel := context.WithCancel(ctx)
	t := &GetTask[V]{
		key:        key,
		backendKey: core.keys.BackendKey(key),
		core:       core,
		codec:      cd,
		ctx:        tctx,
		cancel:     cancel,
	}
	t.envelope = future.Go(tctx, func(ctx context.Context) (any, error) {
		return core.backend.Get(ctx, t.backendKey)
	})
	return t
}

// doneGetTask is a task that completed without touching a backend.
func doneGetTask[V any](key string, r Result[V]) *GetTask[V] {
	return &GetTask[V]{key: key, cancel: func() {}, done: true, result: r}
}

func (t *GetTask[V]) Key() string { return t.key }

// Cancel aborts the task. It returns false if the task was already done or
// cancelled.
func (t *GetTask[V]) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.done {
		return false
	}
	t.cancelled = true
	t.cancel()
	return true
}

func (t *GetTask[V]) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *GetTask[V]) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Await waits up to timeout for the result; 0 means the client's
// OperationTimeout. Errors are ErrCancelled, ErrTimeout, ctx.Err() or a
// backend fault. Unexpected stored types and undecodable values are not
// errors here: they complete the task with an Error result.
func (t *GetTask[V]) Await(ctx context.Context, timeout time.Duration) (Result[V], error) {
	if timeout < 0 {
		return Result[V]{}, invalidArg("negative timeout %v", timeout)
	}
	if t.core != nil {
		timeout = coalesce(timeout, t.core.timeout)
	}
	return t.await(ctx, time.Now(), timeout)
}

func (t *GetTask[V]) await(ctx context.Context, start time.Time, timeout time.Duration) (Result[V], error) {
	t.run.Lock()
	defer t.run.Unlock()

	if r, ok, err := t.settled(); ok {
		return r, err
	}

	b := &budget{start: start, timeout: timeout, relax: t.core.relax, hooks: t.core.hooks}
	r, err := t.step(ctx, b, t.core.now().UnixMilli())
	if err != nil {
		if t.Cancelled() {
			return Result[V]{}, ErrCancelled
		}
		rt, _ := classify(err)
		t.core.hooks.GetCompleted(rt, time.Since(start))
		return Result[V]{}, err
	}

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return Result[V]{}, ErrCancelled
	}
	t.done = true
	t.result = r
	t.mu.Unlock()
	t.cancel()

	t.core.hooks.GetCompleted(r.Type, time.Since(start))
	return copyResult(r), nil
}

func (t *GetTask[V]) settled() (Result[V], bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.cancelled:
		return Result[V]{}, true, ErrCancelled
	case t.done:
		return copyResult(t.result), true, nil
	default:
		return Result[V]{}, false, nil
	}
}

func (t *GetTask[V]) step(ctx context.Context, b *budget, nowMillis int64) (Result[V], error) {
	raw, err := waitFor(ctx, b, t.envelope)
	if err != nil {
		return Result[V]{}, err
	}
	if raw == nil {
		return Result[V]{Type: Miss}, nil
	}
	o, ok := raw.(*entry.Object)
	if !ok {
		got := typeName(raw)
		t.core.hooks.EnvelopeTypeMismatch(t.backendKey, got)
		t.core.log.Warn("unexpected type under object key", Fields{"key": t.key, "got": got})
		return Result[V]{Type: Error, Err: &UnexpectedTypeError{Key: t.key, Expected: "*entry.Object", Got: got}}, nil
	}
	if o == nil {
		return Result[V]{Type: Miss}, nil
	}

	records, err := t.loadRecords(ctx, b, o)
	if err != nil {
		return Result[V]{}, err
	}

	expired := isExpired(o, nowMillis, t.core.expFn, t.core.rnd)
	group, hard, invalidated := isInvalidated(o, records, nowMillis, t.core.tmeMillis, t.core.invFn, t.core.rnd)
	if invalidated && hard {
		return Result[V]{Type: Miss}, nil
	}

	v, err := t.codec.Decode(o.Value)
	if err != nil {
		t.core.hooks.ValueDecodeError(t.backendKey, err)
		t.core.log.Warn("value decode failed", Fields{"key": t.key, "err": err})
		return Result[V]{Type: Error, Err: fmt.Errorf("arcache: decode %q: %w", t.key, err)}, nil
	}

	r := Result[V]{
		Type:                 Hit,
		Value:                v,
		StoreTimestampMillis: o.TimestampMillis,
		InvalidationKeys:     slices.Clone(o.InvalidationKeys),
	}
	if expired {
		r.Type = Expired
	}
	if invalidated {
		r.Type = Invalidated
		r.InvalidatedKey = group
	}
	return r, nil
}

// loadRecords issues one fetch per distinct group, all at once, then awaits
// them in group order under the same budget.
func (t *GetTask[V]) loadRecords(ctx context.Context, b *budget, o *entry.Object) ([]*entry.Invalidation, error) {
	if len(o.InvalidationKeys) == 0 {
		return nil, nil
	}
	if t.records == nil {
		t.records = make(map[string]*future.Future[any], len(o.InvalidationKeys))
	}
	for _, g := range o.InvalidationKeys {
		if _, ok := t.records[g]; ok {
			continue
		}
		key := t.core.keys.InvalidationBackendKey(g)
		t.records[g] = future.Go(t.ctx, func(ctx context.Context) (any, error) {
			return t.core.invBackend.Get(ctx, key)
		})
	}

	out := make([]*entry.Invalidation, len(o.InvalidationKeys))
	for i, g := range o.InvalidationKeys {
		if t.Cancelled() {
			return nil, ErrCancelled
		}
		raw, err := waitFor(ctx, b, t.records[g])
		if err != nil {
			return nil, err
		}
		switch rec := raw.(type) {
		case nil:
		case *entry.Invalidation:
			out[i] = rec
		default:
			got := typeName(raw)
			t.core.hooks.InvalidationRecordIgnored(g, got)
			t.core.log.Debug("ignoring unexpected invalidation record", Fields{"group": g, "got": got})
		}
	}
	return out, nil
}

func copyResult[V any](r Result[V]) Result[V] {
	r.InvalidationKeys = slices.Clone(r.InvalidationKeys)
	return r
}
