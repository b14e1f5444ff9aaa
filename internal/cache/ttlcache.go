package cache

import "github.com/jellydator/ttlcache/v3"

type ttlcacheStore struct {
	c *ttlcache.Cache[string, string]
}

// newTTLCache runs ttlcache without a default TTL; per-key deadlines are
// tracked by the local wrapper so every in-process backend expires the same way.
func newTTLCache(capacity int) store {
	c := ttlcache.New[string, string](
		ttlcache.WithCapacity[string, string](uint64(capacity)), //nolint:gosec // capacity always positive
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &ttlcacheStore{c: c}
}

func (s *ttlcacheStore) Get(key string) (string, bool) {
	item := s.c.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

func (s *ttlcacheStore) Set(key, value string) {
	s.c.Set(key, value, ttlcache.NoTTL)
}

func (s *ttlcacheStore) Close() {
	s.c.Stop()
}
