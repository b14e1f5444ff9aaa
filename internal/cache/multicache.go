package cache

import "github.com/codeGROOVE-dev/multicache"

type multicacheStore struct {
	c *multicache.Cache[string, string]
}

func newMulticache(capacity int) store {
	return &multicacheStore{c: multicache.New[string, string](multicache.Size(capacity))}
}

func (s *multicacheStore) Get(key string) (string, bool) {
	return s.c.Get(key)
}

func (s *multicacheStore) Set(key, value string) {
	s.c.Set(key, value)
}

func (s *multicacheStore) Close() {
	s.c.Close()
}
