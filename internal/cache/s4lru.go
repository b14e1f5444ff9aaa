package cache

import (
	"sync"

	"github.com/dgryski/go-s4lru"
)

// s4lruStore serializes access; go-s4lru is not safe for concurrent use.
type s4lruStore struct {
	c  *s4lru.Cache
	mu sync.Mutex
}

func newS4LRU(capacity int) store {
	return &s4lruStore{c: s4lru.New(capacity)}
}

func (s *s4lruStore) Get(key string) (string, bool) {
	s.mu.Lock()
	v, ok := s.c.Get(key)
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	return v.(string), true //nolint:errcheck,revive // type is known from Set
}

func (s *s4lruStore) Set(key, value string) {
	s.mu.Lock()
	s.c.Set(key, value)
	s.mu.Unlock()
}

func (*s4lruStore) Close() {}
