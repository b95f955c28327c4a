package arcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/arcache/future"
)

// budget is the time left for one Await, shared by every sequential wait it
// performs. It also tracks how long those waits actually blocked, to tell a
// slow backend from a slow process.
type budget struct {
	start   time.Time
	timeout time.Duration
	relax   bool
	waited  time.Duration
	hooks   Hooks
}

func (b *budget) next() (time.Duration, error) {
	remaining := b.timeout - time.Since(b.start)
	d, relaxed, err := allot(remaining, b.timeout, b.waited, b.relax)
	if relaxed {
		b.hooks.TimeoutRelaxed(remaining, d)
	}
	return d, err
}

// allot decides how long the next wait may block. While the backend has not
// consumed the whole timeout, a relaxed budget never drops below
// timeout/relaxDivisor.
func allot(remaining, timeout, waited time.Duration, relax bool) (d time.Duration, relaxed bool, err error) {
	if relax && waited < timeout {
		if floor := timeout / relaxDivisor; remaining < floor {
			return floor, true, nil
		}
		return remaining, false, nil
	}
	if remaining <= 0 {
		return 0, false, ErrTimeout
	}
	return remaining, false, nil
}

// waitFor blocks on f within the budget. A wait that runs out of time returns
// ErrTimeout and leaves f running; a done ctx returns ctx.Err(). Otherwise
// the future's own result is returned.
func waitFor[T any](ctx context.Context, b *budget, f *future.Future[T]) (T, error) {
	var zero T
	d, err := b.next()
	if err != nil {
		return zero, err
	}
	t0 := time.Now()
	v, err := f.Wait(ctx, d)
	b.waited += time.Since(t0)
	if err != nil {
		if !f.Ready() {
			if cerr := ctx.Err(); cerr != nil {
				return zero, cerr
			}
			return zero, ErrTimeout
		}
		// completed while the timer fired
		return f.Await(ctx)
	}
	return v, nil
}
