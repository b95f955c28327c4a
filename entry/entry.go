// Package entry defines the two envelopes arcache exchanges with a backend.
//
// Both are plain messages: the client writes them, the backend stores them
// and hands them back on Get. Backends that keep Go values in memory return
// the same pointer types; byte-oriented backends frame them with the wire
// format and decode them back into these types.
package entry

// Object wraps a user value together with its freshness metadata.
// Immutable once written.
type Object struct {
	// Value is the user payload, already encoded by the client's codec.
	Value []byte
	// TimestampMillis is the unix time in milliseconds when the value was stored.
	TimestampMillis int64
	// ExpirationTTLMillis is the logical freshness horizon. <= 0 means the
	// object is considered fully aged as soon as it is read.
	ExpirationTTLMillis int64
	// InvalidationKeys lists the invalidation groups this object belongs to,
	// in the order they were given on Set.
	InvalidationKeys []string
}

// Invalidation is the record stored for an invalidation group.
//
// The Last* fields always describe the most recent event *before* this one,
// split by kind, never the event this record itself describes. A reader can
// therefore judge an object against the current event and against the last
// hard and last soft events without the record holding a full history.
type Invalidation struct {
	// InvalidationTimestampMillis is when this invalidation was requested.
	InvalidationTimestampMillis int64
	// InvalidationWindowMillis spreads the invalidation over time. <= 0 means
	// it takes effect immediately.
	InvalidationWindowMillis int64
	// Hard makes matching objects inaccessible rather than flagged.
	Hard bool
	// LastHardInvalidationTimestampMillis is the previous hard event, 0 if none.
	LastHardInvalidationTimestampMillis int64
	// LastSoftInvalidationTimestampMillis is the previous soft event, 0 if none.
	LastSoftInvalidationTimestampMillis int64
}

// Next builds the record that follows prev for a new event at nowMillis.
// prev may be nil when the group has no readable record yet.
func Next(prev *Invalidation, nowMillis, windowMillis int64, hard bool) *Invalidation {
	inv := &Invalidation{
		InvalidationTimestampMillis: nowMillis,
		InvalidationWindowMillis:    windowMillis,
		Hard:                        hard,
	}
	if prev == nil {
		return inv
	}
	inv.LastHardInvalidationTimestampMillis = prev.LastHardInvalidationTimestampMillis
	inv.LastSoftInvalidationTimestampMillis = prev.LastSoftInvalidationTimestampMillis
	if prev.Hard {
		inv.LastHardInvalidationTimestampMillis = prev.InvalidationTimestampMillis
	} else {
		inv.LastSoftInvalidationTimestampMillis = prev.InvalidationTimestampMillis
	}
	return inv
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	cp := *o
	if o.Value != nil {
		cp.Value = append([]byte(nil), o.Value...)
	}
	if o.InvalidationKeys != nil {
		cp.InvalidationKeys = append([]string(nil), o.InvalidationKeys...)
	}
	return &cp
}

// Clone returns a copy of inv.
func (inv *Invalidation) Clone() *Invalidation {
	if inv == nil {
		return nil
	}
	cp := *inv
	return &cp
}
