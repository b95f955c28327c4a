package arcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/arcache/backend"
	c "github.com/unkn0wn-root/arcache/codec"
	"github.com/unkn0wn-root/arcache/future"
	"github.com/unkn0wn-root/arcache/probability"
)

// Client is the high-level API. V is the caller's value type; serialization
// is handled by a pluggable Codec[V].
type Client[V any] interface {
	Enabled() bool
	Keys() KeyBuilder
	Close(context.Context) error

	// Get returns the value only on a Hit. Miss, Expired and Invalidated all
	// read as (zero, false, nil); timeouts and faults return their cause.
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	// GetCacheObject never fails: every outcome, errors included, is in the Result.
	GetCacheObject(ctx context.Context, key string) Result[V]
	// GetCacheObjectTimeout is GetCacheObject with its own budget. A zero
	// timeout is an empty budget and yields Timeout without touching the
	// backend; GetCacheObject is the call that uses OperationTimeout.
	GetCacheObjectTimeout(ctx context.Context, key string, timeout time.Duration) Result[V]
	// AsyncGetCacheObject starts the fetch and returns immediately.
	AsyncGetCacheObject(ctx context.Context, key string) (*GetTask[V], error)

	// Set stores value under key, tagged with the given invalidation groups.
	Set(ctx context.Context, key string, value V, groups ...string) error
	AsyncSet(ctx context.Context, key string, value V, groups ...string) (*future.Future[bool], error)

	// InvalidateKey invalidates every object stored under group before now.
	// Defaults come from Options (HardInvalidation, InvalidationWindow).
	InvalidateKey(ctx context.Context, group string, opts ...InvalidateOption) error
	AsyncInvalidateKey(ctx context.Context, group string, opts ...InvalidateOption) (*InvalidateTask, error)
}

// Options tune the client.
// Only Backend and Codec are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Backend backend.Client
	Codec   c.Codec[V]

	// InvalidationBackend stores group records; nil => Backend.
	InvalidationBackend backend.Client

	Namespace    string // prefixes every backend key. e.g. "app:prod:user"
	KeyDelimiter string // "" => "|"

	OperationTimeout    time.Duration // budget of a sync call; 0 => 500ms
	DisableTimeoutRelax bool          // default false => a slow process gets extra time, a slow backend does not

	// TimeMeasurementError is the assumed clock skew between hosts. Objects
	// are treated as this much older when compared with invalidations, and
	// objects younger than it are never invalidated.
	TimeMeasurementError time.Duration
	InvalidationWindow   time.Duration // default window of InvalidateKey; 0 => immediate
	HardInvalidation     bool          // default kind of InvalidateKey; false => soft

	ExpirationTime time.Duration // logical freshness; 0 => 1h
	RemovalTime    time.Duration // backend TTL of everything written; 0 => 24h

	ExpirationProbability   probability.Func // nil => AdjustedExponential(0.5, 11)
	InvalidationProbability probability.Func // nil => AdjustedExponential(0, 11)
	Rand                    func() float64   // uniform in [0,1); nil => math/rand/v2.Float64. Must be safe for concurrent use.

	Logger   Logger // if nil, NopLogger is used
	Hooks    Hooks  // if nil, NopHooks is used
	Disabled bool   // default false (enabled); when true reads miss and writes are dropped
}

func New[V any](opts Options[V]) (Client[V], error) {
	return newClient[V](opts)
}

// InvalidateOption overrides the client defaults for one invalidation.
type InvalidateOption func(*invalidateParams)

type invalidateParams struct {
	hard   bool
	window time.Duration
}

// Hard makes matching objects read as Miss.
func Hard() InvalidateOption { return func(p *invalidateParams) { p.hard = true } }

// Soft makes matching objects read as Invalidated, value included.
func Soft() InvalidateOption { return func(p *invalidateParams) { p.hard = false } }

// Window spreads the invalidation over d: objects stored shortly before the
// invalidation are invalidated with a probability that grows with their age.
func Window(d time.Duration) InvalidateOption {
	return func(p *invalidateParams) { p.window = d }
}
