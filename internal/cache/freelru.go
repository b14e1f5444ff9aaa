package cache

import (
	lru "github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"
)

func hash(s string) uint32 {
	return uint32(xxh3.HashString(s)) //nolint:gosec // truncation is the point
}

type freeLRUSyncedStore struct {
	c *lru.SyncedLRU[string, string]
}

func newFreeLRUSynced(capacity int) store {
	c, _ := lru.NewSynced[string, string](uint32(capacity), hash) //nolint:errcheck,gosec // capacity always positive
	return &freeLRUSyncedStore{c: c}
}

func (s *freeLRUSyncedStore) Get(key string) (string, bool) {
	return s.c.Get(key)
}

func (s *freeLRUSyncedStore) Set(key, value string) {
	s.c.Add(key, value)
}

func (s *freeLRUSyncedStore) Close() {
	s.c.Purge()
}

type freeLRUShardedStore struct {
	c *lru.ShardedLRU[string, string]
}

func newFreeLRUSharded(capacity int) store {
	c, _ := lru.NewSharded[string, string](uint32(capacity), hash) //nolint:errcheck,gosec // capacity always positive
	return &freeLRUShardedStore{c: c}
}

func (s *freeLRUShardedStore) Get(key string) (string, bool) {
	return s.c.Get(key)
}

func (s *freeLRUShardedStore) Set(key, value string) {
	s.c.Add(key, value)
}

func (s *freeLRUShardedStore) Close() {
	s.c.Purge()
}
