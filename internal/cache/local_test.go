package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func localKinds() []string {
	var kinds []string
	for _, k := range AvailableNames() {
		if !IsRemote(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func TestLocalBackendsContract(t *testing.T) {
	ctx := context.Background()
	for _, kind := range localKinds() {
		t.Run(kind, func(t *testing.T) {
			b, err := Open(ctx, Options{Kind: kind, Capacity: 4096})
			require.NoError(t, err)
			defer b.Close() //nolint:errcheck // test cleanup
			require.Equal(t, kind, b.Name())

			_, found, err := b.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, b.Set(ctx, "k", "v", 0))
			v, found, err := b.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, "v", v)

			require.NoError(t, b.Set(ctx, "empty", "", 0))
			v, found, err = b.Get(ctx, "empty")
			require.NoError(t, err)
			require.True(t, found, "stored empty string must be distinct from a miss")
			require.Empty(t, v)

			require.NoError(t, b.Set(ctx, "n", "0", 0))
			n, err := b.Incr(ctx, "n", 5)
			require.NoError(t, err)
			require.Equal(t, int64(5), n)
			n, err = b.Incr(ctx, "n", -2)
			require.NoError(t, err)
			require.Equal(t, int64(3), n)

			_, err = b.Incr(ctx, "absent", 1)
			require.ErrorIs(t, err, ErrNotFound)
			_, found, err = b.Get(ctx, "absent")
			require.NoError(t, err)
			require.False(t, found, "incr must not create missing keys")

			_, err = b.Incr(ctx, "k", 1)
			require.ErrorIs(t, err, ErrNotInteger)

			require.NoError(t, b.Flush(ctx))
			_, found, err = b.Get(ctx, "k")
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func TestLocalTTL(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Options{Kind: "lru", Capacity: 16})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // test cleanup

	require.NoError(t, b.Set(ctx, "short", "x", 20*time.Millisecond))
	require.NoError(t, b.Set(ctx, "forever", "y", 0))
	time.Sleep(50 * time.Millisecond)

	_, found, err := b.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = b.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, found)

	// Rewriting without a ttl clears the deadline.
	require.NoError(t, b.Set(ctx, "short", "z", 0))
	v, found, err := b.Get(ctx, "short")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "z", v)
}

func TestLocalConcurrentIncr(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Options{Kind: "otter", Capacity: 1024})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // test cleanup
	require.NoError(t, b.Set(ctx, "c", "0", 0))

	const workers, each = 8, 250
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				if _, err := b.Incr(ctx, "c", 1); err != nil {
					t.Errorf("incr: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, found, err := b.Get(ctx, "c")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, strconv.Itoa(workers*each), v)
}

func TestLocalConfigure(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	b, err := Open(ctx, Options{Kind: "lru", Capacity: 8, Logger: zap.New(core)})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // test cleanup

	// Unsupported fields are skipped with a warning, not rejected.
	require.NoError(t, b.Configure(ctx, Profile{EvictionPolicy: "allkeys-lfu", Samples: 10}))
	warnings := logs.FilterMessage("profile field not supported").All()
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		require.Equal(t, zap.WarnLevel, w.Level)
		require.Equal(t, "lru", w.ContextMap()["backend"])
	}
	require.Equal(t, "eviction_policy", warnings[0].ContextMap()["field"])
	require.Equal(t, "allkeys-lfu", warnings[0].ContextMap()["value"])
	require.Equal(t, "samples", warnings[1].ContextMap()["field"])

	// The policy the library already implements is not a warning.
	require.NoError(t, b.Configure(ctx, Profile{EvictionPolicy: "lru"}))
	require.Len(t, logs.FilterMessage("profile field not supported").All(), 2)

	require.NoError(t, b.Configure(ctx, Profile{MaxMemoryMB: 1}))
	l, ok := b.(*local)
	require.True(t, ok)
	require.Equal(t, (1<<20)/entrySize, l.capacity)
	require.Equal(t, 1, logs.FilterMessage("resized in-process cache").Len())
}

// hookStore runs onGet inside the first Get it serves.
type hookStore struct {
	store
	once  sync.Once
	onGet func()
}

func (h *hookStore) Get(key string) (string, bool) {
	v, ok := h.store.Get(key)
	h.once.Do(h.onGet)
	return v, ok
}

// incrWithInterleaved starts op while Incr sits between its read and its
// write, and waits for both to finish.
func incrWithInterleaved(t *testing.T, op func(b Backend) error) Backend {
	t.Helper()
	ctx := context.Background()
	var (
		b    *local
		done = make(chan error, 1)
	)
	hook := &hookStore{store: newLRU(16)}
	hook.onGet = func() {
		go func() { done <- op(b) }()
		select {
		case err := <-done:
			done <- err
		case <-time.After(50 * time.Millisecond):
		}
	}
	first := true
	b = newLocal("hooked", "lru", func(capacity int) store {
		if first {
			first = false
			return hook
		}
		return newLRU(capacity)
	}, 16, zap.NewNop())
	t.Cleanup(func() { b.Close() }) //nolint:errcheck // test cleanup

	require.NoError(t, b.Set(ctx, "c", "0", 0))
	n, err := b.Incr(ctx, "c", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, <-done)
	return b
}

func TestLocalIncrAtomicWithSet(t *testing.T) {
	b := incrWithInterleaved(t, func(b Backend) error {
		return b.Set(context.Background(), "c", "100", 0)
	})
	v, found, err := b.Get(context.Background(), "c")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "100", v, "a Set issued during Incr must not be overwritten")
}

func TestLocalIncrAtomicWithFlush(t *testing.T) {
	b := incrWithInterleaved(t, func(b Backend) error {
		return b.Flush(context.Background())
	})
	_, found, err := b.Get(context.Background(), "c")
	require.NoError(t, err)
	require.False(t, found, "a Flush issued during Incr must not be undone")
}

func TestLocalCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b, err := Open(context.Background(), Options{Kind: "sieve"})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // test cleanup

	err = b.Set(ctx, "k", "v", 0)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Options{Kind: "nope"})
	require.Error(t, err)
}

func TestOpenNameDefaults(t *testing.T) {
	b, err := Open(context.Background(), Options{Kind: "2q", Name: "2q-small", Capacity: 32})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // test cleanup
	require.Equal(t, "2q-small", b.Name())

	b2, err := Open(context.Background(), Options{Name: "clock"})
	require.NoError(t, err)
	defer b2.Close() //nolint:errcheck // test cleanup
	require.Equal(t, "clock", b2.Name())
}
