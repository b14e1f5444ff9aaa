package benchmark

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tstromberg/cachebench/internal/cache"
)

func openLocal(t *testing.T, kind string) cache.Backend {
	t.Helper()
	b, err := cache.Open(context.Background(), cache.Options{Kind: kind, Capacity: 1 << 16})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() }) //nolint:errcheck // test cleanup
	return b
}

// collect returns an Emit that appends to a slice.
func collect() (Emit, *[]Sample) {
	var got []Sample
	return func(s Sample) { got = append(got, s) }, &got
}

var wall = Sampler{Clock: WallClock{}}

// corruptBackend stores a wrong value on every write.
type corruptBackend struct {
	cache.Backend
}

func (c corruptBackend) Name() string { return "corrupt" }

func (c corruptBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.Backend.Set(ctx, key, value+"1", ttl)
}

// fakeFetcher counts upstream calls and returns a fixed body.
type fakeFetcher struct {
	body  []byte
	err   error
	calls atomic.Int64
}

func (f *fakeFetcher) Fetch(context.Context, string, map[string]string) ([]byte, error) {
	f.calls.Add(1)
	return f.body, f.err
}
