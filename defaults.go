package arcache

import (
	"time"

	"github.com/unkn0wn-root/arcache/probability"
)

const (
	defaultOperationTimeout = 500 * time.Millisecond
	defaultExpirationTime   = time.Hour
	defaultRemovalTime      = 24 * time.Hour
	defaultKeyDelimiter     = "|"

	// InvalidationKeyPrefix separates invalidation records from objects in
	// the backend keyspace.
	InvalidationKeyPrefix = "InvKey"

	// relaxDivisor sets the minimum slice of the budget a sub-fetch gets
	// when the process, not the backend, ate the budget.
	relaxDivisor = 5
)

var (
	defaultExpirationProbability   = probability.MustAdjustedExponential(0.5, 11)
	defaultInvalidationProbability = probability.MustAdjustedExponential(0, 11)
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
