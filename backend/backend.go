// Package backend defines the storage abstraction used by arcache.
//
// A backend stores two kinds of values under string keys: *entry.Object
// (a cached value with its metadata) and *entry.Invalidation (the record of
// an invalidation group). Backends that keep Go values in memory may store
// the pointers as-is; byte-oriented stores frame them with arcache's wire
// format and decode them on Get.
//
// Get must return exactly one of:
//   - (nil, nil) when the key is absent or was evicted by the store;
//   - (v, nil) with whatever value is stored, even if it is not one of the
//     two entry types (the client reports wrong-typed values itself);
//   - (nil, err) on a transport or server fault.
//
// Backends must be safe for concurrent use and must honour ctx cancellation
// on blocking calls.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidArgument is wrapped by Set when the key is unusable or the value
// cannot be stored by this backend.
var ErrInvalidArgument = errors.New("backend: invalid argument")

type Client interface {
	// Get returns the stored value for key, (nil, nil) on miss.
	Get(ctx context.Context, key string) (any, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value any, ttl time.Duration) (ok bool, err error)

	// Close releases resources.
	Close(ctx context.Context) error
}
