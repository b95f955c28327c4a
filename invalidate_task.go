package arcache

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/arcache/entry"
	"github.com/unkn0wn-root/arcache/future"
)

// InvalidateTask is an in-flight group invalidation: read the group's current
// record, roll its history forward, write the new record.
//
// Two invalidators racing on the same group may both read the same prior
// record; the last write wins and one event drops out of the history. Only
// the previous hard and soft timestamps are kept, so the window of loss is
// the round trip between read and write.
type InvalidateTask struct {
	group      string
	backendKey string
	hard       bool
	window     time.Duration
	core       *core

	ctx    context.Context
	cancel context.CancelFunc

	run sync.Mutex

	mu        sync.Mutex
	cancelled bool
	done      bool
	ok        bool

	// guarded by run
	prior  *future.Future[any]
	write  *future.Future[bool]
	record *entry.Invalidation
}

func newInvalidateTask(ctx context.Context, core *core, group string, p invalidateParams) *InvalidateTask {
	tctx, cancel := context.WithCancel(ctx)
	t := &InvalidateTask{
		group:      group,
		backendKey: core.keys.InvalidationBackendKey(group),
		hard:       p.hard,
		window:     p.window,
		core:       core,
		ctx:        tctx,
		cancel:     cancel,
	}
	t.prior = future.Go(tctx, func(ctx context.Context) (any, error) {
		return core.invBackend.Get(ctx, t.backendKey)
	})
	return t
}

func doneInvalidateTask(group string, ok bool) *InvalidateTask {
	return &InvalidateTask{group: group, cancel: func() {}, done: true, ok: ok}
}

func (t *InvalidateTask) Group() string { return t.group }

// Record is the invalidation record this task wrote or is writing, nil before
// the write was issued.
func (t *InvalidateTask) Record() *entry.Invalidation {
	t.run.Lock()
	defer t.run.Unlock()
	return t.record.Clone()
}

func (t *InvalidateTask) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.done {
		return false
	}
	t.cancelled = true
	t.cancel()
	return true
}

func (t *InvalidateTask) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *InvalidateTask) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Await returns whether the backend accepted the record. 0 means the
// client's OperationTimeout.
func (t *InvalidateTask) Await(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout < 0 {
		return false, invalidArg("negative timeout %v", timeout)
	}
	if t.core != nil {
		timeout = coalesce(timeout, t.core.timeout)
	}
	return t.await(ctx, time.Now(), timeout)
}

func (t *InvalidateTask) await(ctx context.Context, start time.Time, timeout time.Duration) (bool, error) {
	t.run.Lock()
	defer t.run.Unlock()

	t.mu.Lock()
	switch {
	case t.cancelled:
		t.mu.Unlock()
		return false, ErrCancelled
	case t.done:
		t.mu.Unlock()
		return t.ok, nil
	}
	t.mu.Unlock()

	b := &budget{start: start, timeout: timeout, relax: t.core.relax, hooks: t.core.hooks}

	if t.write == nil {
		prev, err := t.readPrior(ctx, b)
		if err != nil {
			return false, t.fail(err)
		}
		rec := entry.Next(prev, t.core.now().UnixMilli(), t.window.Milliseconds(), t.hard)
		t.record = rec
		t.write = future.Go(t.ctx, func(ctx context.Context) (bool, error) {
			return t.core.invBackend.Set(ctx, t.backendKey, rec, t.core.removal)
		})
	}

	ok, err := waitFor(ctx, b, t.write)
	if err != nil {
		return false, t.fail(err)
	}

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return false, ErrCancelled
	}
	t.done = true
	t.ok = ok
	t.mu.Unlock()
	t.cancel()

	if ok {
		t.core.hooks.InvalidationWritten(t.group, t.hard)
		t.core.log.Debug("invalidation written", Fields{"group": t.group, "hard": t.hard, "window": t.window})
	} else {
		t.core.hooks.BackendSetRejected(t.backendKey)
		t.core.log.Debug("invalidation rejected by backend (pressure)", Fields{"group": t.group})
	}
	return ok, nil
}

// readPrior returns the group's current record. A fault or a wrong type
// means "no history". A timeout stops the task before anything is written,
// so history is never dropped; a retried Await reuses the pending read.
func (t *InvalidateTask) readPrior(ctx context.Context, b *budget) (*entry.Invalidation, error) {
	raw, err := waitFor(ctx, b, t.prior)
	if err != nil {
		if t.Cancelled() {
			return nil, ErrCancelled
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		if kind, terr := classify(err); kind == Timeout {
			return nil, terr
		}
		t.core.hooks.PriorInvalidationUnreadable(t.group, err)
		t.core.log.Debug("prior invalidation unreadable", Fields{"group": t.group, "err": err})
		return nil, nil
	}
	switch prev := raw.(type) {
	case nil:
		return nil, nil
	case *entry.Invalidation:
		return prev, nil
	default:
		err := &UnexpectedTypeError{Key: t.group, Expected: "*entry.Invalidation", Got: typeName(raw)}
		t.core.hooks.PriorInvalidationUnreadable(t.group, err)
		t.core.log.Debug("prior invalidation unreadable", Fields{"group": t.group, "err": err})
		return nil, nil
	}
}

func (t *InvalidateTask) fail(err error) error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return err
}
