// Package arcache is a consistency layer in front of pluggable key-value
// cache backends. It adds two things a plain cache lacks:
//
//   - probabilistic expiration: as an entry ages, each read has a growing
//     chance of observing it as expired, so a popular key is refreshed by one
//     reader instead of by all of them at once;
//   - group invalidation: entries are tagged with invalidation groups on Set,
//     and invalidating a group hides (hard) or flags (soft) every entry stored
//     before the invalidation, optionally spread over a time window.
//
// Writers and readers on different hosts rarely agree on the time. Every
// timestamp comparison is shifted by TimeMeasurementError so that an entry
// written around the time of an invalidation is treated as older than it.
//
// Components:
//   - backend.Client: stores *entry.Object and *entry.Invalidation under string keys.
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - probability.Func: the expiration and invalidation curves.
//   - backend/speedup: optional local tiers in front of a slow backend.
//
// Keys:
//
//	<ns>|<key>           - objects
//	<ns>|InvKey|<group>  - invalidation records
//
// Typical flow:
//
//	c, _ := arcache.New[User](arcache.Options[User]{Backend: b, Codec: codec.JSON[User]{}})
//	_ = c.Set(ctx, "user:1", u, "users", "tenant:7")
//	r := c.GetCacheObject(ctx, "user:1") // Hit, Expired, Invalidated, Miss...
//	_ = c.InvalidateKey(ctx, "tenant:7", arcache.Soft())
package arcache
