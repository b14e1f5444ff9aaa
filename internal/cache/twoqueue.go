package cache

import lru "github.com/hashicorp/golang-lru/v2"

type twoQueueStore struct {
	c *lru.TwoQueueCache[string, string]
}

func newTwoQueue(capacity int) store {
	c, _ := lru.New2Q[string, string](capacity) //nolint:errcheck // capacity always positive
	return &twoQueueStore{c: c}
}

func (s *twoQueueStore) Get(key string) (string, bool) {
	return s.c.Get(key)
}

func (s *twoQueueStore) Set(key, value string) {
	s.c.Add(key, value)
}

func (s *twoQueueStore) Close() {
	s.c.Purge()
}
