package cache

import "github.com/Yiling-J/theine-go"

type theineStore struct {
	c *theine.Cache[string, string]
}

func newTheine(capacity int) store {
	c, _ := theine.NewBuilder[string, string](int64(capacity)).Build() //nolint:errcheck // capacity always positive
	return &theineStore{c: c}
}

func (s *theineStore) Get(key string) (string, bool) {
	return s.c.Get(key)
}

func (s *theineStore) Set(key, value string) {
	s.c.Set(key, value, 1)
}

func (s *theineStore) Close() {
	s.c.Close()
}
