package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeconds(t *testing.T) {
	assert.Equal(t, 90*time.Second, Seconds(90))
	assert.Equal(t, time.Duration(0), Seconds(0))
}

func TestTenantKey(t *testing.T) {
	assert.Equal(t, "acme:intern:42", TenantKey("acme", "intern", "42"))
	assert.Equal(t, "acme", TenantKey("acme"))
}

func TestFacadeBatchOperations(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newTestCache(t, testCacheConfig())
	f := NewFacade(c)

	require.NoError(t, f.SetMany(ctx, map[string]any{
		"a": "1",
		"b": "2",
	}, SetOptions{TTL: time.Minute}))

	got, err := f.GetMany(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, got)

	require.NoError(t, f.DeleteMany(ctx, "a", "b", "missing"))
	got, err = f.GetMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFacadeSetWithTTLSeconds(t *testing.T) {
	ctx := context.Background()
	c, _, client, _ := newTestCache(t, testCacheConfig())
	f := NewFacade(c)

	require.NoError(t, f.SetWithTTLSeconds(ctx, "key", "value", 60, "t"))

	ttl, err := client.TTL(ctx, "key").Result()
	require.NoError(t, err)
	assert.InDelta(t, 60, ttl.Seconds(), 1)

	members, err := client.SMembers(ctx, "tag:t").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"key"}, members)

	assert.Same(t, c, f.Cache())
}
