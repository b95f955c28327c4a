package arcache

import (
	"github.com/unkn0wn-root/arcache/entry"
	"github.com/unkn0wn-root/arcache/probability"
)

// happens draws against p. p <= 0 and p >= 1 are decided without a draw.
func happens(p float64, rnd func() float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return p > rnd()
}

// isExpired applies the expiration curve to the age of o relative to its TTL.
// A non-positive TTL counts as fully aged.
func isExpired(o *entry.Object, nowMillis int64, fn probability.Func, rnd func() float64) bool {
	norm := 1.0
	if o.ExpirationTTLMillis > 0 {
		norm = float64(nowMillis-o.TimestampMillis) / float64(o.ExpirationTTLMillis)
	}
	return happens(fn(norm), rnd)
}

// isInvalidated checks o against the records of its groups, in the order the
// groups were stored. records[i] belongs to o.InvalidationKeys[i] and may be
// nil. The first group that invalidates o decides.
func isInvalidated(o *entry.Object, records []*entry.Invalidation, nowMillis, tmeMillis int64,
	fn probability.Func, rnd func() float64) (group string, hard, invalidated bool) {

	if len(records) == 0 {
		return "", false, false
	}
	// too young to tell apart from an invalidation racing the write
	if nowMillis-tmeMillis < o.TimestampMillis {
		return "", false, false
	}
	eff := o.TimestampMillis - tmeMillis

	for i, rec := range records {
		if rec == nil {
			continue
		}
		g := o.InvalidationKeys[i]

		if eff <= rec.LastHardInvalidationTimestampMillis {
			return g, true, true
		}
		if eff <= rec.InvalidationTimestampMillis {
			if rec.InvalidationWindowMillis <= 0 {
				return g, rec.Hard, true
			}
			norm := float64(rec.InvalidationTimestampMillis-eff) / float64(rec.InvalidationWindowMillis)
			if happens(fn(norm), rnd) {
				return g, rec.Hard, true
			}
		}
		if eff <= rec.LastSoftInvalidationTimestampMillis {
			return g, false, true
		}
	}
	return "", false, false
}
