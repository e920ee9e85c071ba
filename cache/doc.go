// Package cache implements the tiered cache used across the Stagio
// platform: an in-process bounded cache (L1) backed by a shared Redis
// tier (L2), fronted by a circuit breaker that detects remote
// unavailability and degrades gracefully to L1-only operation, plus a
// tag-based secondary index for group invalidation.
//
// # Tiers
//
// Reads check L1 first; on a miss the remote tier is consulted through
// the breaker and a hit is written back into L1 so repeated reads within
// the L1 window avoid the round trip. Writes always land in L1 and are
// propagated to L2 when it is usable. L1 retention is capped: short
// while the remote tier is healthy (the durable copy lives in Redis),
// minutes-scale while it is down, widening the local safety net exactly
// when the durable tier is unavailable.
//
// The local tier is selected at construction time via Config.L1Capacity:
// a bounded LRU ([NewLRUStore]) or an unbounded map with per-entry
// expiry ([NewMapStore]). Custom implementations can be injected with
// [WithLocalStore].
//
// # Degraded operation
//
// The cache never returns an error for a degraded-but-functioning state.
// Remote transport failures, breaker rejections and malformed payloads
// all surface as misses on read and as silent skips on write; the only
// observable degradation is a lower hit rate. Errors are returned solely
// for programmer mistakes such as an empty key.
//
// Remote usability is a composite gate: a client exists, the last
// transport event succeeded, the breaker is not open, and the
// error-cooldown deadline has passed. A background probe pings a down
// remote so recovery is noticed even when the gate is keeping regular
// traffic away from it.
//
// # Not-found semantics
//
// Get reports presence with a distinct bool, so a stored false or empty
// value is not conflated with "no entry":
//
//	found, enrolled, err := cache.Get[bool](ctx, c, "intern:42:enrolled")
//
// # Tags
//
// Set can register a key under tags; InvalidateByTags removes every key
// registered under any given tag. The index is kept both in-process and
// mirrored to Redis (tag:{tag} and tags:{key} sets) so invalidation
// works across processes without a keyspace scan. The index is advisory:
// a registered key may already have expired, and cleanup happens lazily
// on delete.
//
// # Values and serialization
//
// Values are opaque. L1 holds live references; L2 holds UTF-8 JSON.
// A value served from L2 is returned as json.RawMessage and decoded on
// demand by the generic helpers [Get] and [GetOrSet]. Values that cannot
// be JSON-encoded are cached locally only.
//
// # Metrics
//
// [TieredCache.Metrics] returns hit/miss counters and rates for both
// tiers together with the breaker's counters. [NewCollector] adapts the
// snapshot for Prometheus.
package cache
