// Package speedup is a local read-through proxy in front of a slower backend.
//
// Up to three in-process tiers (invalidation records, objects, misses) answer
// repeated reads without a round trip. A local copy ages out gradually: each
// read draws against Config.ExpirationProbability over age/tier expiration,
// so replicas do not all go back to the backend at the same instant. When the
// backend fails, a local copy of any age is returned instead of the error.
//
// Writes go to the local tiers first and are then forwarded. Another process
// writing the same key is only seen once the local copy ages out.
package speedup

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/arcache/backend"
	"github.com/unkn0wn-root/arcache/entry"
	"github.com/unkn0wn-root/arcache/probability"
)

// Tier names one of the local caches.
type Tier uint8

const (
	TierInvalidation Tier = iota
	TierObjects
	TierMisses
)

func (t Tier) String() string {
	switch t {
	case TierInvalidation:
		return "invalidation"
	case TierObjects:
		return "objects"
	case TierMisses:
		return "misses"
	default:
		return "unknown"
	}
}

// Tracker observes the proxy. Implementations must be cheap and non-blocking.
type Tracker interface {
	// A local tier failed; the request went on without it.
	SpeedupException(key string, err error)
	// The backend failed and a local copy was served instead.
	BackendGetFailureRecovered(key string, err error)
	LocalHit(tier Tier)
	LocalMiss(tier Tier)
}

type NopTracker struct{}

func (NopTracker) SpeedupException(string, error)           {}
func (NopTracker) BackendGetFailureRecovered(string, error) {}
func (NopTracker) LocalHit(Tier)                            {}
func (NopTracker) LocalMiss(Tier)                           {}

// TierConfig sizes one tier. Both fields set enables it, both zero disables
// it, anything else is an error.
type TierConfig struct {
	Size       int64         // entries
	Expiration time.Duration // age at which a local copy is certainly stale
}

func (c TierConfig) enabled() bool { return c.Size != 0 || c.Expiration != 0 }

type Config struct {
	Backend backend.Client // required

	Invalidation TierConfig
	Objects      TierConfig
	Misses       TierConfig

	// DisableProtection returns backend failures as-is instead of serving a
	// local copy.
	DisableProtection bool
	// Isolation deep-copies entries on the way in and out.
	Isolation bool

	// Retain bounds how long a local copy is kept for protection; 0 => 365 days.
	Retain time.Duration
	// FetchTimeout bounds a shared backend read; 0 => 5s. Each caller is
	// still bounded by its own ctx.
	FetchTimeout time.Duration

	ExpirationProbability probability.Func // nil => AdjustedExponential(0, 11)
	Rand                  func() float64   // nil => math/rand/v2.Float64
	Now                   func() time.Time // nil => time.Now
	Tracker               Tracker          // nil => NopTracker
}

var (
	ErrNoBackend = errors.New("speedup: backend is required")
	ErrNoTier    = errors.New("speedup: no tier configured")
	ErrBadTier   = errors.New("speedup: tier needs both size and expiration")
	ErrClosed    = errors.New("speedup: closed")
)

const (
	defaultRetain       = 365 * 24 * time.Hour
	defaultFetchTimeout = 5 * time.Second
)

var defaultExpirationProbability = probability.MustAdjustedExponential(0, 11)

// local is what the tiers hold.
type local struct {
	v        any
	storedAt time.Time
}

type tier struct {
	kind Tier
	c    *rc.Cache
	exp  time.Duration
}

type Speedup struct {
	inner   backend.Client
	tiers   []*tier // lookup order: invalidation, objects, misses
	inv     *tier
	objects *tier
	misses  *tier

	protect   bool
	isolation bool
	retain    time.Duration
	fetchTO   time.Duration

	expFn   probability.Func
	rnd     func() float64
	now     func() time.Time
	tracker Tracker

	sf      singleflight.Group
	mu      sync.Mutex // guards closed and flights.Add
	closed  bool
	flights sync.WaitGroup
	once    sync.Once
}

var _ backend.Client = (*Speedup)(nil)

func New(cfg Config) (*Speedup, error) {
	if cfg.Backend == nil {
		return nil, ErrNoBackend
	}
	s := &Speedup{
		inner:     cfg.Backend,
		protect:   !cfg.DisableProtection,
		isolation: cfg.Isolation,
		retain:    cfg.Retain,
		fetchTO:   cfg.FetchTimeout,
		expFn:     cfg.ExpirationProbability,
		rnd:       cfg.Rand,
		now:       cfg.Now,
		tracker:   cfg.Tracker,
	}
	if s.retain <= 0 {
		s.retain = defaultRetain
	}
	if s.fetchTO <= 0 {
		s.fetchTO = defaultFetchTimeout
	}
	if s.expFn == nil {
		s.expFn = defaultExpirationProbability
	}
	if s.rnd == nil {
		s.rnd = rand.Float64
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tracker == nil {
		s.tracker = NopTracker{}
	}

	var err error
	if s.inv, err = newTier(TierInvalidation, cfg.Invalidation); err != nil {
		return nil, err
	}
	if s.objects, err = newTier(TierObjects, cfg.Objects); err != nil {
		s.closeTiers()
		return nil, err
	}
	if s.misses, err = newTier(TierMisses, cfg.Misses); err != nil {
		s.closeTiers()
		return nil, err
	}
	for _, t := range []*tier{s.inv, s.objects, s.misses} {
		if t != nil {
			s.tiers = append(s.tiers, t)
		}
	}
	if len(s.tiers) == 0 {
		return nil, ErrNoTier
	}
	return s, nil
}

func newTier(kind Tier, cfg TierConfig) (*tier, error) {
	if !cfg.enabled() {
		return nil, nil
	}
	if cfg.Size <= 0 || cfg.Expiration <= 0 {
		return nil, fmt.Errorf("%w: %s (size=%d expiration=%v)", ErrBadTier, kind, cfg.Size, cfg.Expiration)
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.Size * 10,
		MaxCost:     cfg.Size,
		BufferItems: 64,
		// every entry costs 1, so MaxCost counts entries
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("speedup: %s tier: %w", kind, err)
	}
	return &tier{kind: kind, c: c, exp: cfg.Expiration}, nil
}

func (s *Speedup) Get(ctx context.Context, key string) (any, error) {
	if l, t, ok := s.restore(key, true); ok {
		if !s.stale(l, t) {
			s.tracker.LocalHit(t.kind)
			return s.isolate(l.v), nil
		}
		s.tracker.LocalMiss(t.kind)
	}

	ch := s.sf.DoChan(key, func() (any, error) {
		if !s.enter() {
			return nil, ErrClosed
		}
		defer s.flights.Done()
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTO)
		defer cancel()
		v, err := s.inner.Get(fctx, key)
		if err != nil {
			return nil, err
		}
		s.store(key, v)
		return v, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return s.protection(key, r.Err)
		}
		return s.isolate(r.Val), nil
	case <-ctx.Done():
		return s.protection(key, ctx.Err())
	}
}

// Set records value locally, then forwards it.
func (s *Speedup) Set(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.store(key, value)
	return s.inner.Set(ctx, key, value, ttl)
}

// Clear drops every local copy.
func (s *Speedup) Clear() {
	for _, t := range s.tiers {
		t.c.Clear()
	}
}

// Wait blocks until buffered local writes are visible.
func (s *Speedup) Wait() {
	for _, t := range s.tiers {
		t.c.Wait()
	}
}

// Close waits for shared fetches in flight, then closes the tiers and the
// inner backend. Later fetches fail with ErrClosed.
func (s *Speedup) Close(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.flights.Wait()
		s.closeTiers()
		err = s.inner.Close(ctx)
	})
	return err
}

// enter registers a backend fetch unless the proxy is closed.
func (s *Speedup) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.flights.Add(1)
	return true
}

func (s *Speedup) closeTiers() {
	for _, t := range []*tier{s.inv, s.objects, s.misses} {
		if t != nil {
			t.c.Close()
		}
	}
}

// restore returns the first local copy of key, whatever its age.
func (s *Speedup) restore(key string, track bool) (local, *tier, bool) {
	for _, t := range s.tiers {
		v, ok := t.c.Get(key)
		if !ok {
			if track {
				s.tracker.LocalMiss(t.kind)
			}
			continue
		}
		l, ok := v.(local)
		if !ok {
			t.c.Del(key)
			s.tracker.SpeedupException(key, fmt.Errorf("speedup: %s tier holds %T", t.kind, v))
			continue
		}
		return l, t, true
	}
	return local{}, nil, false
}

func (s *Speedup) stale(l local, t *tier) bool {
	norm := float64(s.now().Sub(l.storedAt)) / float64(t.exp)
	p := s.expFn(norm)
	return p >= 1 || p > s.rnd()
}

func (s *Speedup) protection(key string, cause error) (any, error) {
	if s.protect {
		if l, _, ok := s.restore(key, false); ok {
			s.tracker.BackendGetFailureRecovered(key, cause)
			return s.isolate(l.v), nil
		}
	}
	return nil, cause
}

// store puts value in the tier that matches its kind. A nil value is a miss.
func (s *Speedup) store(key string, value any) {
	l := local{v: s.isolate(value), storedAt: s.now()}
	if value == nil {
		s.del(s.inv, key)
		s.del(s.objects, key)
		s.set(s.misses, key, l)
		return
	}
	if _, ok := value.(*entry.Invalidation); ok {
		s.set(s.inv, key, l)
	} else {
		s.set(s.objects, key, l)
	}
	s.del(s.misses, key)
}

func (s *Speedup) set(t *tier, key string, l local) {
	if t == nil {
		return
	}
	if !t.c.SetWithTTL(key, l, 1, s.retain) {
		s.tracker.SpeedupException(key, fmt.Errorf("speedup: %s tier dropped write", t.kind))
	}
}

func (s *Speedup) del(t *tier, key string) {
	if t != nil {
		t.c.Del(key)
	}
}

func (s *Speedup) isolate(v any) any {
	if !s.isolation {
		return v
	}
	return clone(v)
}

func clone(v any) any {
	switch x := v.(type) {
	case *entry.Object:
		return x.Clone()
	case *entry.Invalidation:
		return x.Clone()
	case []byte:
		return append([]byte(nil), x...)
	default:
		return v
	}
}
