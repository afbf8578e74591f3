package store

import "sync"

// EntityKind identifies an entity table in the cache.
type EntityKind int

const (
	KindMedia EntityKind = iota
	KindFile
	KindFolder
	KindDevice
	KindAlbum
	KindAlbumTrack
	KindArtist
	KindGenre
	KindPlaylist
	KindShow
	KindShowEpisode
	KindMovie
	KindLabel
	kindCount
)

// EntityCache is the process-wide identity map: at most one live
// in-memory record per persisted row, keyed by (kind, id).
type EntityCache struct {
	shards [kindCount]cacheShard
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[int64]interface{}
}

// NewEntityCache creates an empty cache.
func NewEntityCache() *EntityCache {
	c := &EntityCache{}
	for i := range c.shards {
		c.shards[i].entries = make(map[int64]interface{})
	}
	return c
}

// Fetch returns the live record for (kind, id), loading and inserting it
// via loader on a miss. A loader returning (nil, nil) means the row does
// not exist; nothing is cached and nil is returned.
func (c *EntityCache) Fetch(kind EntityKind, id int64, loader func() (interface{}, error)) (interface{}, error) {
	shard := &c.shards[kind]

	shard.mu.RLock()
	if v, ok := shard.entries[id]; ok {
		shard.mu.RUnlock()
		return v, nil
	}
	shard.mu.RUnlock()

	shard.mu.Lock()
	defer shard.mu.Unlock()
	// Another goroutine may have loaded the row while the lock was free.
	if v, ok := shard.entries[id]; ok {
		return v, nil
	}

	v, err := loader()
	if err != nil || v == nil {
		return nil, err
	}
	shard.entries[id] = v
	return v, nil
}

// Peek returns the live record for (kind, id) without loading.
func (c *EntityCache) Peek(kind EntityKind, id int64) (interface{}, bool) {
	shard := &c.shards[kind]
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	v, ok := shard.entries[id]
	return v, ok
}

// Remove drops the entry for (kind, id). Called from delete hooks so a
// later Fetch reloads from the database.
func (c *EntityCache) Remove(kind EntityKind, id int64) {
	shard := &c.shards[kind]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.entries, id)
}

// ClearKind drops all entries of one kind.
func (c *EntityCache) ClearKind(kind EntityKind) {
	shard := &c.shards[kind]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.entries = make(map[int64]interface{})
}

// Clear empties the whole cache. Called on library reset and force-rescan.
func (c *EntityCache) Clear() {
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mu.Lock()
		shard.entries = make(map[int64]interface{})
		shard.mu.Unlock()
	}
}

// Size returns the total number of live records.
func (c *EntityCache) Size() int {
	total := 0
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}
