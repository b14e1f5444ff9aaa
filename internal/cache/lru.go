package cache

import lru "github.com/hashicorp/golang-lru/v2"

type lruStore struct {
	c *lru.Cache[string, string]
}

func newLRU(capacity int) store {
	c, _ := lru.New[string, string](capacity) //nolint:errcheck // capacity always positive
	return &lruStore{c: c}
}

func (s *lruStore) Get(key string) (string, bool) {
	return s.c.Get(key)
}

func (s *lruStore) Set(key, value string) {
	s.c.Add(key, value)
}

func (s *lruStore) Close() {
	s.c.Purge()
}
