package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagio/go-common/logger"
)

func newTestRemote(t *testing.T) (*redis.Client, *RemoteStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, NewRemoteStore(client, "", time.Second, nil, nil)
}

func TestTagIndexLocalOnly(t *testing.T) {
	ctx := context.Background()
	idx := NewTagIndex(nil, logger.NewTestLogger())

	idx.Register(ctx, "k1", []string{"t1", "t2"}, false)
	idx.Register(ctx, "k2", []string{"t1"}, false)

	assert.ElementsMatch(t, []string{"k1", "k2"}, idx.KeysFor("t1"))
	assert.ElementsMatch(t, []string{"k1"}, idx.KeysFor("t2"))
	assert.ElementsMatch(t, []string{"k1", "k2"}, idx.KeysFor("t1", "t2"))

	idx.CleanupKey(ctx, "k1", false)
	assert.ElementsMatch(t, []string{"k2"}, idx.KeysFor("t1"))
	assert.Empty(t, idx.KeysFor("t2"))

	idx.Drop(ctx, []string{"t1"}, false)
	assert.Empty(t, idx.KeysFor("t1"))
	assert.Equal(t, 0, idx.Len())
}

func TestTagIndexRemoteMirror(t *testing.T) {
	ctx := context.Background()
	client, remote := newTestRemote(t)
	idx := NewTagIndex(remote, logger.NewTestLogger())

	idx.Register(ctx, "k1", []string{"t1"}, true)
	idx.Register(ctx, "k2", []string{"t1", "t2"}, true)

	members, err := client.SMembers(ctx, "tag:t1").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, members)

	tags, err := client.SMembers(ctx, "tags:k2").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, tags)
}

func TestTagIndexCleanupKeyUsesRemoteReverseIndex(t *testing.T) {
	ctx := context.Background()
	client, remote := newTestRemote(t)
	idx := NewTagIndex(remote, logger.NewTestLogger())

	idx.Register(ctx, "k1", []string{"t1", "t2"}, true)
	idx.CleanupKey(ctx, "k1", true)

	n, err := client.Exists(ctx, "tags:k1").Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	members, err := client.SMembers(ctx, "tag:t1").Result()
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.Empty(t, idx.KeysFor("t1", "t2"))
}

func TestTagIndexDropRemovesRemoteSets(t *testing.T) {
	ctx := context.Background()
	client, remote := newTestRemote(t)
	idx := NewTagIndex(remote, logger.NewTestLogger())

	idx.Register(ctx, "k1", []string{"t1"}, true)
	idx.Drop(ctx, []string{"t1"}, true)

	n, err := client.Exists(ctx, "tag:t1").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTagIndexCleanupWithoutRemoteSweepsLocal(t *testing.T) {
	ctx := context.Background()
	idx := NewTagIndex(nil, logger.NewTestLogger())

	idx.Register(ctx, "k1", []string{"t1", "t2", "t3"}, false)
	idx.CleanupKey(ctx, "k1", false)

	assert.Equal(t, 0, idx.Len())
}
