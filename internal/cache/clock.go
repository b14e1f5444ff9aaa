package cache

import (
	"sync"

	"github.com/Code-Hex/go-generics-cache/policy/clock"
)

// clockStore serializes access; the clock policy cache has no internal locking.
type clockStore struct {
	c  *clock.Cache[string, string]
	mu sync.Mutex
}

func newClock(capacity int) store {
	return &clockStore{
		c: clock.NewCache[string, string](clock.WithCapacity(capacity)),
	}
}

func (s *clockStore) Get(key string) (string, bool) {
	s.mu.Lock()
	v, ok := s.c.Get(key)
	s.mu.Unlock()
	return v, ok
}

func (s *clockStore) Set(key, value string) {
	s.mu.Lock()
	s.c.Set(key, value)
	s.mu.Unlock()
}

func (*clockStore) Close() {}
