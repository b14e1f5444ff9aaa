package cache

import "github.com/coocood/freecache"

type freecacheStore struct {
	c *freecache.Cache
}

// newFreecache sizes the segment arena from the entry capacity, since
// freecache is byte-based rather than entry-based.
func newFreecache(capacity int) store {
	cacheBytes := max(capacity*entrySize,
		// minimum 512KB
		512*1024)
	return &freecacheStore{c: freecache.NewCache(cacheBytes)}
}

func (s *freecacheStore) Get(key string) (string, bool) {
	v, err := s.c.Get([]byte(key))
	if err != nil {
		return "", false
	}
	return string(v), true
}

func (s *freecacheStore) Set(key, value string) {
	s.c.Set([]byte(key), []byte(value), 0) //nolint:errcheck,gosec // oversized entries are dropped, which reads back as a miss
}

func (s *freecacheStore) Close() {
	s.c.Clear()
}
