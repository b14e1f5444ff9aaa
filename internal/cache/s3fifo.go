package cache

import "github.com/scalalang2/golang-fifo/s3fifo"

type s3fifoStore struct {
	c *s3fifo.S3FIFO[string, string]
}

func newS3FIFO(capacity int) store {
	return &s3fifoStore{c: s3fifo.New[string, string](capacity, 0)}
}

func (s *s3fifoStore) Get(key string) (string, bool) {
	return s.c.Get(key)
}

func (s *s3fifoStore) Set(key, value string) {
	s.c.Set(key, value)
}

func (s *s3fifoStore) Close() {
	s.c.Purge()
}
