package cache

import "github.com/scalalang2/golang-fifo/sieve"

type sieveStore struct {
	c *sieve.Sieve[string, string]
}

func newSieve(capacity int) store {
	return &sieveStore{c: sieve.New[string, string](capacity, 0)}
}

func (s *sieveStore) Get(key string) (string, bool) {
	return s.c.Get(key)
}

func (s *sieveStore) Set(key, value string) {
	s.c.Set(key, value)
}

func (s *sieveStore) Close() {
	s.c.Purge()
}
