package cache

import "github.com/vmihailenco/go-tinylfu"

type tinyLFUStore struct {
	c *tinylfu.SyncT
}

func newTinyLFU(capacity int) store {
	return &tinyLFUStore{c: tinylfu.NewSync(capacity, capacity*10)}
}

func (s *tinyLFUStore) Get(key string) (string, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true //nolint:errcheck,revive // type is known from Set
}

func (s *tinyLFUStore) Set(key, value string) {
	s.c.Set(&tinylfu.Item{Key: key, Value: value})
}

func (*tinyLFUStore) Close() {}
