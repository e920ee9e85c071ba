package cache

import (
	"context"
	"sync"

	"github.com/stagio/go-common/logger"
)

// Tag index key layout in the remote store. Two parallel indices so that
// deleting one key can find all of its tags and invalidating one tag can
// find all of its keys, without a full scan.
const (
	tagKeyPrefix  = "tag:"  // tag:{tag}  -> set of cache keys
	keyTagsPrefix = "tags:" // tags:{key} -> set of tag names
)

// TagIndex maps tags to the cache keys registered under them. The local
// index is advisory and process-local; the remote mirror is the durable
// source for cross-process invalidation. A key present in a tag's set may
// already be dead: cleanup is lazy, performed on delete.
type TagIndex struct {
	remote *RemoteStore
	log    logger.Logger

	mu   sync.Mutex // guards tags; never held across remote calls
	tags map[string]map[string]struct{}
}

// NewTagIndex returns a TagIndex mirrored into remote. remote may be nil
// for local-only operation.
func NewTagIndex(remote *RemoteStore, log logger.Logger) *TagIndex {
	return &TagIndex{
		remote: remote,
		log:    log,
		tags:   make(map[string]map[string]struct{}),
	}
}

// Register records key under each tag locally and, when remoteOK is true,
// in the remote mirror. Remote failures are logged and swallowed.
func (t *TagIndex) Register(ctx context.Context, key string, tags []string, remoteOK bool) {
	if len(tags) == 0 {
		return
	}
	t.mu.Lock()
	for _, tag := range tags {
		set, ok := t.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			t.tags[tag] = set
		}
		set[key] = struct{}{}
	}
	t.mu.Unlock()

	if !remoteOK || t.remote == nil {
		return
	}
	for _, tag := range tags {
		if err := t.remote.SAdd(ctx, tagKeyPrefix+tag, key); err != nil {
			t.log.Debug("tag index: failed to mirror tag %q for %s: %v", tag, key, err)
			return
		}
	}
	if err := t.remote.SAdd(ctx, keyTagsPrefix+key, tags...); err != nil {
		t.log.Debug("tag index: failed to mirror reverse index for %s: %v", key, err)
	}
}

// KeysFor returns the union of keys registered under the given tags in
// the local index.
func (t *TagIndex) KeysFor(tags ...string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[string]struct{})
	var keys []string
	for _, tag := range tags {
		for key := range t.tags[tag] {
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// CleanupKey removes key from every tag set it belongs to. The remote
// reverse index tags:{key} names the tags; each tag:{tag} set is updated
// both remotely and locally, then the reverse index entry is dropped.
// When remoteOK is false only the local index is swept.
func (t *TagIndex) CleanupKey(ctx context.Context, key string, remoteOK bool) {
	var tags []string
	if remoteOK && t.remote != nil {
		remoteTags, err := t.remote.SMembers(ctx, keyTagsPrefix+key)
		if err != nil {
			t.log.Debug("tag index: failed to read tags for %s: %v", key, err)
		} else {
			tags = remoteTags
		}
	}

	t.mu.Lock()
	if tags == nil {
		// No remote view. Sweep the whole local index.
		for tag, set := range t.tags {
			if _, ok := set[key]; ok {
				tags = append(tags, tag)
			}
		}
	}
	for _, tag := range tags {
		if set, ok := t.tags[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(t.tags, tag)
			}
		}
	}
	t.mu.Unlock()

	if !remoteOK || t.remote == nil {
		return
	}
	for _, tag := range tags {
		if err := t.remote.SRem(ctx, tagKeyPrefix+tag, key); err != nil {
			t.log.Debug("tag index: failed to unregister %s from tag %q: %v", key, tag, err)
			return
		}
	}
	if _, err := t.remote.Del(ctx, keyTagsPrefix+key); err != nil {
		t.log.Debug("tag index: failed to drop reverse index for %s: %v", key, err)
	}
}

// Drop removes the tag entries themselves, locally and remotely.
func (t *TagIndex) Drop(ctx context.Context, tags []string, remoteOK bool) {
	t.mu.Lock()
	for _, tag := range tags {
		delete(t.tags, tag)
	}
	t.mu.Unlock()

	if !remoteOK || t.remote == nil {
		return
	}
	remoteKeys := make([]string, len(tags))
	for i, tag := range tags {
		remoteKeys[i] = tagKeyPrefix + tag
	}
	if _, err := t.remote.Del(ctx, remoteKeys...); err != nil {
		t.log.Debug("tag index: failed to drop remote tag sets: %v", err)
	}
}

// Len returns the number of tags in the local index.
func (t *TagIndex) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tags)
}
