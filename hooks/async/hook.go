// Package asynchook moves hook calls off the request path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    CompletedEvery: 100, // sample ~every 100th completed get
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := arcache.New[User](arcache.Options[User]{
//	    Namespace: "app:prod:user",
//	    Backend:   redis.New(redis.Config{Client: rdb}),
//	    Codec:     codec.JSON[User]{},
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/arcache"
)

// Hooks queues every call for a fixed pool of workers. When the queue is
// full the event is dropped and counted.
type Hooks struct {
	inner   arcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against concurrent sends
	closed  bool
	dropped atomic.Uint64
}

var _ arcache.Hooks = (*Hooks)(nil)

func New(inner arcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Calls after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped is the number of events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) GetCompleted(t arcache.ResultType, took time.Duration) {
	h.try(func() { h.inner.GetCompleted(t, took) })
}
func (h *Hooks) EnvelopeTypeMismatch(k, got string) {
	h.try(func() { h.inner.EnvelopeTypeMismatch(k, got) })
}
func (h *Hooks) ValueDecodeError(k string, err error) {
	h.try(func() { h.inner.ValueDecodeError(k, err) })
}
func (h *Hooks) InvalidationRecordIgnored(g, got string) {
	h.try(func() { h.inner.InvalidationRecordIgnored(g, got) })
}
func (h *Hooks) TimeoutRelaxed(remaining, allotted time.Duration) {
	h.try(func() { h.inner.TimeoutRelaxed(remaining, allotted) })
}
func (h *Hooks) BackendSetRejected(k string) { h.try(func() { h.inner.BackendSetRejected(k) }) }
func (h *Hooks) PriorInvalidationUnreadable(g string, err error) {
	h.try(func() { h.inner.PriorInvalidationUnreadable(g, err) })
}
func (h *Hooks) InvalidationWritten(g string, hard bool) {
	h.try(func() { h.inner.InvalidationWritten(g, hard) })
}
