package cache

import "github.com/maypok86/otter/v2"

type otterStore struct {
	c *otter.Cache[string, string]
}

func newOtter(capacity int) store {
	return &otterStore{c: otter.Must(&otter.Options[string, string]{MaximumSize: capacity})}
}

func (s *otterStore) Get(key string) (string, bool) {
	return s.c.GetIfPresent(key)
}

func (s *otterStore) Set(key, value string) {
	s.c.Set(key, value)
}

func (s *otterStore) Close() {
	s.c.InvalidateAll()
}
