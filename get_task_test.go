package arcache

import (
	"context"
	"errors"
	"testing"
	"time"

	c "github.com/unkn0wn-root/arcache/codec"
	"github.com/unkn0wn-root/arcache/entry"
	"github.com/unkn0wn-root/arcache/probability"
)

func TestProbabilisticExpirationAtNinetyPercent(t *testing.T) {
	ctx := context.Background()
	ttl := time.Hour
	cases := []struct {
		rnd  float64
		want ResultType
	}{
		{0, Expired},
		{0.2, Expired},
		{0.5, Hit},
		{0.7, Hit},
		{1, Hit},
	}
	for _, tc := range cases {
		mb := newMemBackend()
		cc := newTestClient(t, mb, func(o *Options[string]) {
			o.ExpirationProbability = probability.MustAdjustedExponential(0, 11)
			o.Rand = fixedRand(tc.rnd)
		})
		clk := newClock()
		withClock(t, cc, clk)

		now := clk.Now().UnixMilli()
		mb.put("k", &entry.Object{
			Value:               []byte("v"),
			TimestampMillis:     now - ttl.Milliseconds()*9/10,
			ExpirationTTLMillis: ttl.Milliseconds(),
		})
		r := cc.GetCacheObject(ctx, "k")
		if r.Type != tc.want {
			t.Fatalf("rnd=%v: got %v want %v", tc.rnd, r.Type, tc.want)
		}
		if r.Value != "v" {
			t.Fatalf("rnd=%v: value missing: %+v", tc.rnd, r)
		}
	}
}

func TestNonPositiveTTLIsFullyAged(t *testing.T) {
	mb := newMemBackend()
	cc := newTestClient(t, mb, func(o *Options[string]) {
		o.ExpirationProbability = probability.MustLinear(0)
		o.Rand = fixedRand(0.99)
	})
	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: time.Now().UnixMilli()})
	if r := cc.GetCacheObject(context.Background(), "k"); r.Type != Expired {
		t.Fatalf("ttl 0 should read as expired, got %v", r.Type)
	}
}

func TestExpiredButSoftInvalidatedIsInvalidated(t *testing.T) {
	mb := newMemBackend()
	cc := newTestClient(t, mb, func(o *Options[string]) {
		o.ExpirationProbability = probability.MustLinear(0)
		o.Rand = fixedRand(0)
	})
	clk := newClock()
	withClock(t, cc, clk)
	now := clk.Now().UnixMilli()

	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: now - 10_000, ExpirationTTLMillis: 1000, InvalidationKeys: []string{"g"}})
	mb.put("InvKey|g", &entry.Invalidation{InvalidationTimestampMillis: now - 5000})

	r := cc.GetCacheObject(context.Background(), "k")
	if r.Type != Invalidated || r.InvalidatedKey != "g" || r.Value != "v" {
		t.Fatalf("got %+v", r)
	}
}

func TestTooRecentObjectIsValid(t *testing.T) {
	mb := newMemBackend()
	cc := newTestClient(t, mb, func(o *Options[string]) { o.TimeMeasurementError = 2 * time.Second })
	clk := newClock()
	withClock(t, cc, clk)
	now := clk.Now().UnixMilli()

	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: now - 1000, ExpirationTTLMillis: 60_000, InvalidationKeys: []string{"g"}})
	mb.put("InvKey|g", &entry.Invalidation{InvalidationTimestampMillis: now, Hard: true, LastHardInvalidationTimestampMillis: now})

	if r := cc.GetCacheObject(context.Background(), "k"); r.Type != Hit {
		t.Fatalf("object younger than TME must be valid, got %v", r.Type)
	}

	// once older than TME the same record hides it
	clk.Advance(1500 * time.Millisecond)
	if r := cc.GetCacheObject(context.Background(), "k"); r.Type != Miss {
		t.Fatalf("expected Miss once older than TME, got %v", r.Type)
	}
}

func TestWrongEnvelopeTypeIsMemoizedError(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	h := &recHooks{}
	cc := newTestClient(t, mb, func(o *Options[string]) { o.Hooks = h })
	mb.put("k", "not an envelope")

	task, err := cc.AsyncGetCacheObject(ctx, "k")
	if err != nil {
		t.Fatalf("AsyncGetCacheObject: %v", err)
	}
	r1, err := task.Await(ctx, time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if r1.Type != Error || !errors.Is(r1.Err, ErrUnexpectedType) {
		t.Fatalf("got %+v", r1)
	}
	var ute *UnexpectedTypeError
	if !errors.As(r1.Err, &ute) || ute.Got != "string" || ute.Key != "k" {
		t.Fatalf("unexpected error detail: %v", r1.Err)
	}

	r2, err := task.Await(ctx, time.Second)
	if err != nil || r2.Type != Error || r2.Err != r1.Err {
		t.Fatalf("second Await should return the memoized result, got %+v, %v", r2, err)
	}
	if mb.getCount("k") != 1 {
		t.Fatalf("backend read %d times, want 1", mb.getCount("k"))
	}
	if h.mismatch != 1 {
		t.Fatalf("mismatch hook fired %d times", h.mismatch)
	}
	if task.Cancel() {
		t.Fatalf("Cancel after completion must be a no-op")
	}
}

func TestWrongRecordTypeIsIgnored(t *testing.T) {
	mb := newMemBackend()
	h := &recHooks{}
	cc := newTestClient(t, mb, func(o *Options[string]) { o.Hooks = h })
	now := time.Now().UnixMilli()
	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: now - 60_000, ExpirationTTLMillis: 3_600_000, InvalidationKeys: []string{"bad", "good"}})
	mb.put("InvKey|bad", []byte("garbage"))

	r := cc.GetCacheObject(context.Background(), "k")
	if r.Type != Hit {
		t.Fatalf("wrong-typed record must not invalidate, got %+v", r)
	}
	if len(h.ignored) != 1 || h.ignored[0] != "bad" {
		t.Fatalf("ignored hook = %v", h.ignored)
	}
}

func TestUndecodableValueIsError(t *testing.T) {
	mb := newMemBackend()
	h := &recHooks{}
	cc, err := New[int](Options[int]{Backend: mb, Codec: c.JSON[int]{}, Hooks: h})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mb.put("k", &entry.Object{Value: []byte("{nope"), TimestampMillis: time.Now().UnixMilli(), ExpirationTTLMillis: 3_600_000})

	r := cc.GetCacheObject(context.Background(), "k")
	if r.Type != Error || r.Err == nil {
		t.Fatalf("got %+v", r)
	}
	if h.decodeErr != 1 {
		t.Fatalf("decode hook fired %d times", h.decodeErr)
	}
	if _, _, err := cc.Get(context.Background(), "k"); err == nil {
		t.Fatalf("Get must surface the decode error")
	}
}

func TestHardInvalidatedValueIsNotDecoded(t *testing.T) {
	mb := newMemBackend()
	h := &recHooks{}
	cc, _ := New[int](Options[int]{Backend: mb, Codec: c.JSON[int]{}, Hooks: h})
	now := time.Now().UnixMilli()
	mb.put("k", &entry.Object{Value: []byte("{nope"), TimestampMillis: now - 10_000, ExpirationTTLMillis: 3_600_000, InvalidationKeys: []string{"g"}})
	mb.put("InvKey|g", &entry.Invalidation{InvalidationTimestampMillis: now - 1000, Hard: true})

	if r := cc.GetCacheObject(context.Background(), "k"); r.Type != Miss {
		t.Fatalf("got %+v", r)
	}
	if h.decodeErr != 0 {
		t.Fatalf("hidden value should not be decoded")
	}
}

func TestSlowEnvelopeTimesOut(t *testing.T) {
	mb := newMemBackend()
	mb.put("k", &entry.Object{Value: []byte("v")})
	mb.slow("k", 300*time.Millisecond)

	for _, relax := range []bool{true, false} {
		cc := newTestClient(t, mb, func(o *Options[string]) { o.DisableTimeoutRelax = !relax })
		start := time.Now()
		r := cc.GetCacheObjectTimeout(context.Background(), "k", 30*time.Millisecond)
		if r.Type != Timeout || !errors.Is(r.Err, ErrTimeout) {
			t.Fatalf("relax=%v: got %+v", relax, r)
		}
		if el := time.Since(start); el > 250*time.Millisecond {
			t.Fatalf("relax=%v: timeout took %v", relax, el)
		}
		if _, _, err := cc.Get(context.Background(), "k"); err != nil && !errors.Is(err, ErrTimeout) {
			t.Fatalf("relax=%v: Get err=%v", relax, err)
		}
	}
}

func TestBackendDeadlineIsTimeout(t *testing.T) {
	mb := newMemBackend()
	mb.fail("k", context.DeadlineExceeded)
	cc := newTestClient(t, mb, nil)
	r := cc.GetCacheObject(context.Background(), "k")
	if r.Type != Timeout || !errors.Is(r.Err, ErrTimeout) || !errors.Is(r.Err, context.DeadlineExceeded) {
		t.Fatalf("got %+v", r)
	}
}

func TestRecordFaultPropagates(t *testing.T) {
	mb := newMemBackend()
	boom := errors.New("conn reset")
	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: time.Now().UnixMilli() - 60_000, ExpirationTTLMillis: 3_600_000, InvalidationKeys: []string{"g"}})
	mb.fail("InvKey|g", boom)
	cc := newTestClient(t, mb, nil)

	r := cc.GetCacheObject(context.Background(), "k")
	if r.Type != Error || !errors.Is(r.Err, boom) {
		t.Fatalf("record fault must surface as Error, got %+v", r)
	}
}

func TestTimedOutTaskIsResumable(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: time.Now().UnixMilli(), ExpirationTTLMillis: 3_600_000})
	mb.slow("k", 100*time.Millisecond)
	cc := newTestClient(t, mb, func(o *Options[string]) { o.DisableTimeoutRelax = true })

	task, _ := cc.AsyncGetCacheObject(ctx, "k")
	if _, err := task.Await(ctx, 10*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("first Await err=%v want ErrTimeout", err)
	}
	if task.Done() || task.Cancelled() {
		t.Fatalf("timed out task must stay open")
	}
	r, err := task.Await(ctx, 2*time.Second)
	if err != nil || r.Type != Hit || r.Value != "v" {
		t.Fatalf("second Await = %+v, %v", r, err)
	}
	if n := mb.getCount("k"); n != 1 {
		t.Fatalf("envelope fetched %d times, want 1", n)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	mb.put("k", &entry.Object{Value: []byte("v")})
	mb.slow("k", time.Second)
	cc := newTestClient(t, mb, nil)

	task, _ := cc.AsyncGetCacheObject(ctx, "k")
	if task.Cancelled() {
		t.Fatalf("new task reports cancelled")
	}
	if !task.Cancel() {
		t.Fatalf("first Cancel should succeed")
	}
	if task.Cancel() {
		t.Fatalf("second Cancel should report false")
	}
	if !task.Cancelled() || task.Done() {
		t.Fatalf("state after cancel: cancelled=%v done=%v", task.Cancelled(), task.Done())
	}
	start := time.Now()
	if _, err := task.Await(ctx, time.Second); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Await err=%v want ErrCancelled", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("Await on cancelled task blocked")
	}
	select {
	case <-task.envelope.Done():
	case <-time.After(time.Second):
		t.Fatalf("envelope fetch was not aborted")
	}
}

func TestCancelDuringRecordFetch(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	now := time.Now().UnixMilli()
	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: now - 60_000, InvalidationKeys: []string{"i1", "i2"}})
	mb.slow("InvKey|i1", 2*time.Second)
	mb.slow("InvKey|i2", 2*time.Second)
	cc := newTestClient(t, mb, func(o *Options[string]) { o.DisableTimeoutRelax = true })

	task, _ := cc.AsyncGetCacheObject(ctx, "k")
	if _, err := task.Await(ctx, 50*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Await err=%v want ErrTimeout", err)
	}
	task.run.Lock()
	n := len(task.records)
	task.run.Unlock()
	if n != 2 {
		t.Fatalf("record fetches issued = %d, want 2", n)
	}

	if !task.Cancel() {
		t.Fatalf("Cancel should succeed")
	}
	for g, f := range task.records {
		select {
		case <-f.Done():
		case <-time.After(time.Second):
			t.Fatalf("record fetch %s was not aborted", g)
		}
	}
}

func TestRelaxAllotment(t *testing.T) {
	const timeout = 10 * time.Second
	cases := []struct {
		name      string
		remaining time.Duration
		waited    time.Duration
		relax     bool
		want      time.Duration
		relaxed   bool
		err       error
	}{
		{"plenty left", 5 * time.Second, 0, true, 5 * time.Second, false, nil},
		{"little left, process slow", 100 * time.Millisecond, 0, true, 2 * time.Second, true, nil},
		{"overdue, process slow", -7 * time.Second, time.Second, true, 2 * time.Second, true, nil},
		{"backend ate the budget", -time.Millisecond, timeout, true, 0, false, ErrTimeout},
		{"relax off, time left", 5 * time.Second, 0, false, 5 * time.Second, false, nil},
		{"relax off, overdue", 0, 0, false, 0, false, ErrTimeout},
	}
	for _, tc := range cases {
		d, relaxed, err := allot(tc.remaining, timeout, tc.waited, tc.relax)
		if d != tc.want || relaxed != tc.relaxed || !errors.Is(err, tc.err) {
			t.Errorf("%s: allot = (%v, %v, %v), want (%v, %v, %v)", tc.name, d, relaxed, err, tc.want, tc.relaxed, tc.err)
		}
	}
}

func TestRelaxRescuesOverloadedProcess(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: time.Now().UnixMilli(), ExpirationTTLMillis: 3_600_000})
	mb.slow("k", 30*time.Millisecond)

	h := &recHooks{}
	relaxed := newTestClient(t, mb, func(o *Options[string]) { o.Hooks = h })
	task, _ := relaxed.AsyncGetCacheObject(ctx, "k")
	// the budget is almost gone before the first wait, without any backend time
	r, err := task.await(ctx, time.Now().Add(-495*time.Millisecond), 500*time.Millisecond)
	if err != nil || r.Type != Hit {
		t.Fatalf("relaxed Await = %+v, %v", r, err)
	}
	if h.relaxed == 0 {
		t.Fatalf("TimeoutRelaxed hook not fired")
	}

	strict := newTestClient(t, mb, func(o *Options[string]) { o.DisableTimeoutRelax = true })
	task, _ = strict.AsyncGetCacheObject(ctx, "k")
	if _, err := task.await(ctx, time.Now().Add(-495*time.Millisecond), 500*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("strict Await err=%v want ErrTimeout", err)
	}
	task.Cancel()
}

func TestGetCompletedHook(t *testing.T) {
	mb := newMemBackend()
	h := &recHooks{}
	cc := newTestClient(t, mb, func(o *Options[string]) { o.Hooks = h })
	mb.put("k", &entry.Object{Value: []byte("v"), TimestampMillis: time.Now().UnixMilli(), ExpirationTTLMillis: 3_600_000})

	cc.GetCacheObject(context.Background(), "k")
	cc.GetCacheObject(context.Background(), "absent")
	if len(h.completed) != 2 || h.completed[0] != Hit || h.completed[1] != Miss {
		t.Fatalf("completed = %v", h.completed)
	}
}
