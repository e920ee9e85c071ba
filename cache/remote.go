package cache

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RemoteStore is the thin client glue around the shared Redis tier. It
// applies a per-query timeout and an optional key prefix to every
// operation, and tracks connection health through a client hook so that
// transport failures between calls are observed, not just call failures.
//
// The caller owns the redis.Client lifecycle.
type RemoteStore struct {
	client       *redis.Client
	prefix       string
	queryTimeout time.Duration
	ready        atomic.Bool

	onDown func(error) // invoked on every transport-level error
	onUp   func()      // invoked when the connection recovers
}

// NewRemoteStore wraps client. onDown and onUp may be nil.
func NewRemoteStore(client *redis.Client, prefix string, queryTimeout time.Duration, onDown func(error), onUp func()) *RemoteStore {
	rs := &RemoteStore{
		client:       client,
		prefix:       prefix,
		queryTimeout: queryTimeout,
		onDown:       onDown,
		onUp:         onUp,
	}
	rs.ready.Store(true)
	client.AddHook(&connHook{rs: rs})
	return rs
}

// Ready reports whether the last transport-level event was a success.
func (rs *RemoteStore) Ready() bool {
	return rs.ready.Load()
}

func (rs *RemoteStore) markDown(err error) {
	rs.ready.Store(false)
	if rs.onDown != nil {
		rs.onDown(err)
	}
}

func (rs *RemoteStore) markUp() {
	if !rs.ready.Swap(true) && rs.onUp != nil {
		rs.onUp()
	}
}

// transportError reports whether err is a connection-level failure rather
// than a data condition (miss) or caller cancellation.
func transportError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// connHook observes dials and command outcomes. It is the go-redis
// equivalent of subscribing to the client's ready/error connection events.
type connHook struct {
	rs *RemoteStore
}

var _ redis.Hook = (*connHook)(nil)

func (h *connHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.rs.markDown(err)
		} else {
			h.rs.markUp()
		}
		return conn, err
	}
}

func (h *connHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if transportError(err) {
			h.rs.markDown(err)
		} else {
			h.rs.markUp()
		}
		return err
	}
}

func (h *connHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if transportError(err) {
			h.rs.markDown(err)
		} else {
			h.rs.markUp()
		}
		return err
	}
}

func (rs *RemoteStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, rs.queryTimeout)
}

func (rs *RemoteStore) key(key string) string {
	if rs.prefix == "" {
		return key
	}
	return rs.prefix + ":" + key
}

func (rs *RemoteStore) stripPrefix(key string) string {
	if rs.prefix == "" {
		return key
	}
	return key[len(rs.prefix)+1:]
}

// Get returns the stored payload for key, or found=false on a miss.
func (rs *RemoteStore) Get(ctx context.Context, key string) (string, bool, error) {
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	val, err := rs.client.Get(qctx, rs.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores payload under key with an absolute expiry. go-redis uses PX
// for sub-second precision, so short TTLs are respected.
func (rs *RemoteStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	return rs.client.Set(qctx, rs.key(key), payload, ttl).Err()
}

// Del removes the given keys, returning how many existed.
func (rs *RemoteStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = rs.key(k)
	}
	return rs.client.Del(qctx, prefixed...).Result()
}

// Scan returns one batch of keys matching the glob pattern, plus the
// cursor for the next round trip. A returned cursor of zero means the
// iteration is complete. Returned keys are unprefixed.
func (rs *RemoteStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	keys, next, err := rs.client.Scan(qctx, cursor, rs.key(pattern), count).Result()
	if err != nil {
		return nil, 0, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = rs.stripPrefix(k)
	}
	return out, next, nil
}

// SAdd adds members to the set stored under key.
func (rs *RemoteStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return rs.client.SAdd(qctx, rs.key(key), args...).Err()
}

// SRem removes members from the set stored under key.
func (rs *RemoteStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return rs.client.SRem(qctx, rs.key(key), args...).Err()
}

// SMembers returns all members of the set stored under key.
func (rs *RemoteStore) SMembers(ctx context.Context, key string) ([]string, error) {
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	return rs.client.SMembers(qctx, rs.key(key)).Result()
}

// Exists reports whether key is present.
func (rs *RemoteStore) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	n, err := rs.client.Exists(qctx, rs.key(key)).Result()
	return n > 0, err
}

// TTL returns the remaining time to live of key with millisecond
// precision. Negative values follow Redis PTTL semantics (-1 no expiry,
// -2 no key).
func (rs *RemoteStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	return rs.client.PTTL(qctx, rs.key(key)).Result()
}

// FlushAll clears the entire remote database. Test and tooling use only.
func (rs *RemoteStore) FlushAll(ctx context.Context) error {
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	return rs.client.FlushAll(qctx).Err()
}

// Close is a no-op; the redis.Client lifecycle belongs to the caller.
func (rs *RemoteStore) Close() error {
	return nil
}

// Ping probes the connection. Used by the background health probe to
// detect recovery between regular calls.
func (rs *RemoteStore) Ping(ctx context.Context) error {
	qctx, cancel := rs.queryCtx(ctx)
	defer cancel()
	return rs.client.Ping(qctx).Err()
}
