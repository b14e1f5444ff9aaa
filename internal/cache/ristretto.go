package cache

import "github.com/dgraph-io/ristretto"

type ristrettoStore struct {
	c *ristretto.Cache
}

func newRistretto(capacity int) store {
	c, _ := ristretto.NewCache(&ristretto.Config{ //nolint:errcheck // config always valid
		NumCounters:        int64(capacity) * 10,
		MaxCost:            int64(capacity),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	return &ristrettoStore{c: c}
}

func (s *ristrettoStore) Get(key string) (string, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true //nolint:errcheck,revive // type is known from Set
}

// Set waits for the write buffer to drain so a Get issued right after
// observes the value; ristretto may still reject it at admission.
func (s *ristrettoStore) Set(key, value string) {
	s.c.Set(key, value, 1)
	s.c.Wait()
}

func (s *ristrettoStore) Close() {
	s.c.Close()
}
