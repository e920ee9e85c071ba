package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/stagio/go-common/logger"
	"github.com/stagio/go-common/resilience"
)

// TieredCache serves reads from the fastest available tier: an in-process
// bounded local store (L1) backed by a shared Redis tier (L2) guarded by a
// circuit breaker. When the remote tier is down the cache degrades to
// L1-only operation; degraded states never surface as errors to callers,
// only as misses. A tag index supports group invalidation across both
// tiers.
type TieredCache struct {
	cfg     Config
	log     logger.Logger
	local   LocalStore
	remote  *RemoteStore
	breaker *resilience.CircuitBreaker
	tags    *TagIndex
	stats   counters

	sf       singleflight.Group
	coalesce bool

	// Remote-unavailability tracker. Governs log rate limiting and the
	// cooldown window, a second backoff layer independent of the breaker's
	// own timeout.
	mu                sync.Mutex
	unavailableSince  time.Time
	lastErrorLoggedAt time.Time
	disabledUntil     time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a TieredCache.
type Option func(*TieredCache)

// WithLogger sets the logger. Defaults to a console logger.
func WithLogger(log logger.Logger) Option {
	return func(c *TieredCache) { c.log = log }
}

// WithLocalStore overrides the local tier implementation selected by
// Config.L1Capacity.
func WithLocalStore(store LocalStore) Option {
	return func(c *TieredCache) { c.local = store }
}

// WithSingleFlight coalesces concurrent GetOrSet misses for the same key
// into a single supplier invocation. Off by default: without it,
// concurrent misses may each invoke the supplier.
func WithSingleFlight() Option {
	return func(c *TieredCache) { c.coalesce = true }
}

// New creates a TieredCache. client is the caller-owned Redis connection
// for the L2 tier; nil runs the cache in L1-only mode. Close stops the
// background workers but does not close the client.
func New(parent context.Context, client *redis.Client, cfg Config, opts ...Option) *TieredCache {
	def := DefaultConfig()
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.L1Cap <= 0 {
		cfg.L1Cap = def.L1Cap
	}
	if cfg.L1CapDegraded <= 0 {
		cfg.L1CapDegraded = def.L1CapDegraded
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.RemoteCooldown <= 0 {
		cfg.RemoteCooldown = def.RemoteCooldown
	}
	if cfg.ErrorLogInterval <= 0 {
		cfg.ErrorLogInterval = def.ErrorLogInterval
	}
	if cfg.ExpirySweep <= 0 {
		cfg.ExpirySweep = def.ExpirySweep
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = def.ProbeInterval
	}
	if cfg.ScanBatch <= 0 {
		cfg.ScanBatch = def.ScanBatch
	}

	ctx, cancel := context.WithCancel(parent)
	c := &TieredCache{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewConsoleLogger()
	}
	c.log = c.log.WithPrefix("cache")
	if c.local == nil {
		if cfg.L1Capacity > 0 {
			c.local = NewLRUStore(cfg.L1Capacity)
		} else {
			c.local = NewMapStore()
		}
	}
	c.breaker = resilience.New(cfg.Breaker)
	if client != nil {
		c.remote = NewRemoteStore(client, cfg.Prefix, cfg.QueryTimeout, c.noteRemoteError, c.noteRemoteRecovery)
	}
	c.tags = NewTagIndex(c.remote, c.log)

	c.wg.Add(1)
	go c.run()
	return c
}

// run sweeps expired local entries and probes a down remote tier for
// recovery.
func (c *TieredCache) run() {
	defer c.wg.Done()
	sweep := time.NewTicker(c.cfg.ExpirySweep)
	defer sweep.Stop()
	probe := time.NewTicker(c.cfg.ProbeInterval)
	defer probe.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-sweep.C:
			c.local.PurgeExpired()
		case <-probe.C:
			if c.remote != nil && !c.remote.Ready() {
				// The connection hook flips the ready flag on success.
				if err := c.remote.Ping(c.ctx); err != nil {
					c.log.Trace("remote probe failed: %v", err)
				}
			}
		}
	}
}

// Close stops the background workers. It does not close the caller-owned
// Redis client.
func (c *TieredCache) Close(_ context.Context) error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
	return nil
}

// noteRemoteError is invoked by the connection hook on every transport
// failure. It stamps the outage start, pushes the cooldown deadline
// forward, and logs at most once per ErrorLogInterval so a flapping
// connection does not spam the logs.
func (c *TieredCache) noteRemoteError(err error) {
	now := time.Now()
	c.mu.Lock()
	if c.unavailableSince.IsZero() {
		c.unavailableSince = now
	}
	c.disabledUntil = now.Add(c.cfg.RemoteCooldown)
	shouldLog := c.lastErrorLoggedAt.IsZero() || now.Sub(c.lastErrorLoggedAt) >= c.cfg.ErrorLogInterval
	if shouldLog {
		c.lastErrorLoggedAt = now
	}
	since := c.unavailableSince
	c.mu.Unlock()
	if shouldLog {
		c.log.Warn("remote cache unavailable since %s, degrading to local-only: %v",
			since.Format(time.RFC3339), err)
	}
}

// noteRemoteRecovery resets the availability tracker after a successful
// reconnect.
func (c *TieredCache) noteRemoteRecovery() {
	c.mu.Lock()
	if c.unavailableSince.IsZero() {
		c.mu.Unlock()
		return
	}
	outage := time.Since(c.unavailableSince)
	c.unavailableSince = time.Time{}
	c.lastErrorLoggedAt = time.Time{}
	c.disabledUntil = time.Time{}
	c.mu.Unlock()
	c.log.Info("remote cache recovered after %s", outage.Round(time.Millisecond))
}

// remoteUsable is the composite gate for the L2 tier: a client exists, the
// last transport event was a success, the breaker is not open, and the
// cooldown deadline has passed. The breaker alone only reacts to call
// failures; the ready flag catches transport drops between calls, and the
// cooldown suppresses reconnection storms during sustained outages.
func (c *TieredCache) remoteUsable() bool {
	if c.remote == nil || !c.remote.Ready() {
		return false
	}
	if c.breaker.State() == resilience.StateOpen {
		return false
	}
	c.mu.Lock()
	deadline := c.disabledUntil
	c.mu.Unlock()
	return deadline.IsZero() || time.Now().After(deadline)
}

// capTTL bounds local retention. The cap widens when the remote tier is
// down, trading staleness for availability while the durable tier cannot
// take over.
func (c *TieredCache) capTTL(requested time.Duration, remoteUsable bool) time.Duration {
	limit := c.cfg.L1Cap
	if !remoteUsable {
		limit = c.cfg.L1CapDegraded
	}
	if requested < limit {
		return requested
	}
	return limit
}

// The l1 helpers guard against a misbehaving LocalStore implementation:
// a panic downgrades to "no local cache" instead of taking the caller
// down.

func (c *TieredCache) l1Get(key string) (val any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("local store failed on get, treating as miss: %v", r)
			val, ok = nil, false
		}
	}()
	return c.local.Get(key)
}

func (c *TieredCache) l1Set(key string, val any, ttl time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("local store failed on set: %v", r)
		}
	}()
	c.local.Set(key, val, ttl)
}

func (c *TieredCache) l1Delete(key string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("local store failed on delete: %v", r)
		}
	}()
	c.local.Delete(key)
}

func (c *TieredCache) l1Keys() (keys []string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("local store failed listing keys: %v", r)
			keys = nil
		}
	}()
	return c.local.Keys()
}

// Get returns the value stored under key. The found bool is the distinct
// not-found signal: a stored falsy value reports found=true. Values
// served from L2 are returned as json.RawMessage; use the package-level
// generic Get for typed access. Degraded remote states report a miss,
// never an error.
func (c *TieredCache) Get(ctx context.Context, key string) (bool, any, error) {
	if key == "" {
		return false, nil, ErrEmptyKey
	}
	if val, ok := c.l1Get(key); ok {
		c.stats.l1Hits.Add(1)
		return true, val, nil
	}
	c.stats.l1Misses.Add(1)

	if !c.remoteUsable() {
		c.stats.l2Misses.Add(1)
		return false, nil, nil
	}

	var payload string
	var found bool
	var remaining time.Duration
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		val, ok, err := c.remote.Get(ctx, key)
		if err != nil {
			return err
		}
		payload, found = val, ok
		if ok {
			if ttl, err := c.remote.TTL(ctx, key); err == nil && ttl > 0 {
				remaining = ttl
			}
		}
		return nil
	})
	if err != nil {
		c.log.Debug("remote get %s failed: %v", key, err)
		c.stats.l2Misses.Add(1)
		return false, nil, nil
	}
	if !found {
		c.stats.l2Misses.Add(1)
		return false, nil, nil
	}
	c.stats.l2Hits.Add(1)

	// Write-through on read: repeated reads within the L1 window skip the
	// remote round trip. The payload stays raw; typed callers decode it.
	ttl := remaining
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	raw := json.RawMessage(payload)
	c.l1Set(key, raw, c.capTTL(ttl, true))
	return true, raw, nil
}

// Set stores val under key in both tiers. The local write always
// succeeds; the remote write goes through the breaker and its failures
// are logged and swallowed. Tags are registered only after a successful
// remote write. A value that cannot be JSON-encoded is kept locally and
// skipped remotely.
func (c *TieredCache) Set(ctx context.Context, key string, val any, opts SetOptions) error {
	if key == "" {
		return ErrEmptyKey
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	usable := c.remoteUsable()
	c.l1Set(key, val, c.capTTL(ttl, usable))
	if !usable {
		return nil
	}

	payload, err := json.Marshal(val)
	if err != nil {
		c.log.Warn("value for %s is not serializable, remote write skipped: %v", key, err)
		return nil
	}
	if err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.remote.Set(ctx, key, payload, ttl)
	}); err != nil {
		c.log.Debug("remote set %s failed: %v", key, err)
		return nil
	}
	c.tags.Register(ctx, key, opts.Tags, true)
	return nil
}

// GetOrSet returns the cached value for key, or invokes supplier, stores
// the result and returns it. Without WithSingleFlight, concurrent misses
// for the same key may each invoke the supplier.
func (c *TieredCache) GetOrSet(ctx context.Context, key string, supplier Supplier, opts SetOptions) (any, error) {
	if supplier == nil {
		return nil, ErrNilSupplier
	}
	found, val, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		return val, nil
	}

	fill := func() (any, error) {
		val, err := supplier(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, val, opts); err != nil {
			return nil, err
		}
		return val, nil
	}
	if c.coalesce {
		val, err, _ := c.sf.Do(key, fill)
		return val, err
	}
	return fill()
}

// Delete removes key from both tiers and from every tag set it belongs
// to. Deleting an absent key is a no-op.
func (c *TieredCache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	c.l1Delete(key)

	if !c.remoteUsable() {
		c.tags.CleanupKey(ctx, key, false)
		return nil
	}
	if err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.remote.Del(ctx, key)
		return err
	}); err != nil {
		c.log.Debug("remote delete %s failed: %v", key, err)
		c.tags.CleanupKey(ctx, key, false)
		return nil
	}
	c.tags.CleanupKey(ctx, key, true)
	return nil
}

// Invalidate removes every key matching the glob pattern (`*` matches any
// run of characters) from both tiers. The remote keyspace is walked with
// a cursor-based SCAN in bounded batches rather than a blocking full
// sweep. Returns an error only for an invalid pattern.
func (c *TieredCache) Invalidate(ctx context.Context, pattern string) error {
	if pattern == "" {
		return ErrEmptyKey
	}
	re, err := globRegexp(pattern)
	if err != nil {
		return errors.Wrapf(err, "cache: invalid pattern %q", pattern)
	}

	for _, k := range c.l1Keys() {
		if re.MatchString(k) {
			c.l1Delete(k)
		}
	}

	if !c.remoteUsable() {
		return nil
	}
	var cursor uint64
	for {
		var keys []string
		if err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			batch, next, err := c.remote.Scan(ctx, cursor, pattern, c.cfg.ScanBatch)
			if err != nil {
				return err
			}
			keys, cursor = batch, next
			return nil
		}); err != nil {
			c.log.Debug("remote scan for %q aborted: %v", pattern, err)
			return nil
		}
		if len(keys) > 0 {
			if err := c.breaker.Execute(ctx, func(ctx context.Context) error {
				_, err := c.remote.Del(ctx, keys...)
				return err
			}); err != nil {
				c.log.Debug("remote delete for %q aborted: %v", pattern, err)
				return nil
			}
			for _, k := range keys {
				c.l1Delete(k)
				c.tags.CleanupKey(ctx, k, true)
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

// InvalidateByTags deletes every key registered under any of the given
// tags, then drops the tag entries themselves.
func (c *TieredCache) InvalidateByTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	for _, key := range c.tags.KeysFor(tags...) {
		if err := c.Delete(ctx, key); err != nil {
			return err
		}
	}
	c.tags.Drop(ctx, tags, c.remoteUsable())
	return nil
}

// Metrics returns a snapshot of both tiers and the breaker.
func (c *TieredCache) Metrics() Metrics {
	l1Hits, l1Misses := c.stats.l1Hits.Load(), c.stats.l1Misses.Load()
	l2Hits, l2Misses := c.stats.l2Hits.Load(), c.stats.l2Misses.Load()
	breaker := c.breaker.Metrics()
	return Metrics{
		L1: LocalMetrics{
			Size:    c.local.Len(),
			Hits:    l1Hits,
			Misses:  l1Misses,
			HitRate: hitRate(l1Hits, l1Misses),
		},
		L2: RemoteMetrics{
			Connected:    c.remote != nil && c.remote.Ready(),
			CircuitState: breaker.State.String(),
			Hits:         l2Hits,
			Misses:       l2Misses,
			HitRate:      hitRate(l2Hits, l2Misses),
		},
		Circuit: breaker,
	}
}
