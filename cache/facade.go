package cache

import (
	"context"
	"strings"
	"time"
)

// Facade is the thin convenience layer consumed by the platform's
// business services: batch operations, second-based TTL helpers for call
// sites that configure TTLs in seconds, and tenant-scoped key naming.
// It adds no caching semantics of its own.
type Facade struct {
	cache *TieredCache
}

// NewFacade wraps c.
func NewFacade(c *TieredCache) *Facade {
	return &Facade{cache: c}
}

// Cache exposes the underlying TieredCache.
func (f *Facade) Cache() *TieredCache {
	return f.cache
}

// Seconds converts a TTL expressed in seconds to the millisecond-based
// time.Duration the cache API uses. Unit conversion lives at this edge
// only.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// TenantKey builds a namespaced cache key for a tenant:
// TenantKey("acme", "intern", "42") -> "acme:intern:42".
func TenantKey(tenant string, parts ...string) string {
	return strings.Join(append([]string{tenant}, parts...), ":")
}

// GetMany returns the values found for keys. Absent keys are simply not
// present in the result.
func (f *Facade) GetMany(ctx context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		found, val, err := f.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out[key] = val
		}
	}
	return out, nil
}

// SetMany stores every entry with the same options.
func (f *Facade) SetMany(ctx context.Context, entries map[string]any, opts SetOptions) error {
	for key, val := range entries {
		if err := f.cache.Set(ctx, key, val, opts); err != nil {
			return err
		}
	}
	return nil
}

// SetWithTTLSeconds stores val with a TTL given in whole seconds.
func (f *Facade) SetWithTTLSeconds(ctx context.Context, key string, val any, seconds int, tags ...string) error {
	return f.cache.Set(ctx, key, val, SetOptions{TTL: Seconds(seconds), Tags: tags})
}

// DeleteMany removes every key. Absent keys are no-ops.
func (f *Facade) DeleteMany(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := f.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
