package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrEmptyKey is returned when an operation is given an empty key.
	ErrEmptyKey = errors.New("cache: key must not be empty")

	// ErrNilSupplier is returned when GetOrSet is given a nil supplier.
	ErrNilSupplier = errors.New("cache: supplier must not be nil")
)

// SetOptions controls a single Set operation.
type SetOptions struct {
	// TTL is the requested time to live. Zero or negative uses the
	// configured default TTL. The local tier may retain the entry for less
	// time than requested (see Config.L1Cap).
	TTL time.Duration

	// Tags registers the key under each tag for group invalidation via
	// InvalidateByTags. Registration happens after a successful remote
	// write; when the remote tier is down, no tags are recorded.
	Tags []string
}

// Supplier produces a value on a cache miss.
type Supplier func(ctx context.Context) (any, error)

// decode converts a cached value to T. Values served out of the local tier
// are live references and type-assert directly; values filled from the
// remote tier are raw JSON and are unmarshaled on demand.
func decode[T any](val any) (T, bool) {
	if typed, ok := val.(T); ok {
		return typed, true
	}
	var data []byte
	switch raw := val.(type) {
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	default:
		var zero T
		return zero, false
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// Get retrieves a typed value from the cache. The found bool distinguishes
// "no entry" from a stored zero value; a decode failure reports a miss.
func Get[T any](ctx context.Context, c *TieredCache, key string) (bool, T, error) {
	found, val, err := c.Get(ctx, key)
	if err != nil || !found {
		var zero T
		return false, zero, err
	}
	out, ok := decode[T](val)
	if !ok {
		var zero T
		return false, zero, nil
	}
	return true, out, nil
}

// GetOrSet returns the cached value for key, or invokes supplier once,
// stores the result and returns it. Concurrent misses for the same key may
// invoke the supplier more than once unless WithSingleFlight is enabled.
func GetOrSet[T any](ctx context.Context, c *TieredCache, key string, supplier func(ctx context.Context) (T, error), opts SetOptions) (T, error) {
	if supplier == nil {
		var zero T
		return zero, ErrNilSupplier
	}
	val, err := c.GetOrSet(ctx, key, func(ctx context.Context) (any, error) {
		return supplier(ctx)
	}, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := decode[T](val)
	if !ok {
		// Stale payload of a different shape. Recompute directly.
		return supplier(ctx)
	}
	return out, nil
}
