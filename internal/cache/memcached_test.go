package cache

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeMemcached speaks enough of the text protocol for the adapter tests.
type fakeMemcached struct {
	ln       net.Listener
	mu       sync.Mutex
	data     map[string]string
	memlimit int64
}

func startFakeMemcached(t *testing.T) *fakeMemcached {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeMemcached{ln: ln, data: map[string]string{}}
	go f.serve()
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck,gosec // test cleanup
	return f
}

func (f *fakeMemcached) addr() string { return f.ln.Addr().String() }

func (f *fakeMemcached) serve() {
	for {
		c, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(c)
	}
}

func (f *fakeMemcached) handle(c net.Conn) {
	defer c.Close() //nolint:errcheck // test server
	r := bufio.NewReader(c)
	w := bufio.NewWriter(c)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		f.mu.Lock()
		switch fields[0] {
		case "version":
			fmt.Fprint(w, "VERSION 1.6.fake\r\n")
		case "set":
			n, _ := strconv.Atoi(fields[4]) //nolint:errcheck // test server
			buf := make([]byte, n+2)
			if _, err := io.ReadFull(r, buf); err != nil {
				f.mu.Unlock()
				return
			}
			f.data[fields[1]] = string(buf[:n])
			fmt.Fprint(w, "STORED\r\n")
		case "get":
			if v, ok := f.data[fields[1]]; ok {
				fmt.Fprintf(w, "VALUE %s 0 %d\r\n%s\r\n", fields[1], len(v), v)
			}
			fmt.Fprint(w, "END\r\n")
		case "incr", "decr":
			v, ok := f.data[fields[1]]
			if !ok {
				fmt.Fprint(w, "NOT_FOUND\r\n")
				break
			}
			cur, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				fmt.Fprint(w, "CLIENT_ERROR cannot increment or decrement non-numeric value\r\n")
				break
			}
			d, _ := strconv.ParseUint(fields[2], 10, 64) //nolint:errcheck // test server
			if fields[0] == "incr" {
				cur += d
			} else if d > cur {
				cur = 0
			} else {
				cur -= d
			}
			f.data[fields[1]] = strconv.FormatUint(cur, 10)
			fmt.Fprintf(w, "%d\r\n", cur)
		case "flush_all":
			f.data = map[string]string{}
			fmt.Fprint(w, "OK\r\n")
		case "cache_memlimit":
			f.memlimit, _ = strconv.ParseInt(fields[1], 10, 64) //nolint:errcheck // test server
			fmt.Fprint(w, "OK\r\n")
		default:
			fmt.Fprint(w, "ERROR\r\n")
		}
		f.mu.Unlock()
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func TestMemcachedBackend(t *testing.T) {
	ctx := context.Background()
	f := startFakeMemcached(t)

	b, err := Open(ctx, Options{Kind: "memcached", Addrs: []string{f.addr()}, Timeout: time.Second})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // test cleanup

	_, found, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, b.Set(ctx, "greeting", "hello\r\nworld", 0))
	v, found, err := b.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hello\r\nworld", v)

	require.NoError(t, b.Set(ctx, "empty", "", 0))
	v, found, err = b.Get(ctx, "empty")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, v)

	require.NoError(t, b.Set(ctx, "n", "10", 0))
	n, err := b.Incr(ctx, "n", 5)
	require.NoError(t, err)
	require.Equal(t, int64(15), n)
	n, err = b.Incr(ctx, "n", -20)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	_, err = b.Incr(ctx, "absent", 1)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = b.Incr(ctx, "greeting", 1)
	require.ErrorIs(t, err, ErrNotInteger)

	require.NoError(t, b.Flush(ctx))
	_, found, err = b.Get(ctx, "n")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemcachedConfigure(t *testing.T) {
	ctx := context.Background()
	f := startFakeMemcached(t)

	b, err := Open(ctx, Options{
		Kind:    "memcached",
		Addrs:   []string{f.addr()},
		Profile: Profile{MaxMemoryMB: 64, EvictionPolicy: "allkeys-lru"},
	})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // test cleanup

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(t, int64(64), f.memlimit)
}

func TestMemcachedSharding(t *testing.T) {
	ctx := context.Background()
	f1, f2 := startFakeMemcached(t), startFakeMemcached(t)

	b, err := Open(ctx, Options{Kind: "memcached", Addrs: []string{f1.addr(), f2.addr()}})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // test cleanup

	for i := range 100 {
		k := strconv.Itoa(i)
		require.NoError(t, b.Set(ctx, k, k, 0))
	}
	for i := range 100 {
		k := strconv.Itoa(i)
		v, found, err := b.Get(ctx, k)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, k, v)
	}

	f1.mu.Lock()
	n1 := len(f1.data)
	f1.mu.Unlock()
	f2.mu.Lock()
	n2 := len(f2.data)
	f2.mu.Unlock()
	require.Equal(t, 100, n1+n2)
	require.NotZero(t, n1)
	require.NotZero(t, n2)

	require.NoError(t, b.Flush(ctx))
	f1.mu.Lock()
	require.Empty(t, f1.data)
	f1.mu.Unlock()
}

func TestMemcachedUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() //nolint:errcheck,gosec // free the port

	_, err = Open(context.Background(), Options{Kind: "memcached", Addrs: []string{addr}, Timeout: 200 * time.Millisecond})
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestMemcachedInvalidKey(t *testing.T) {
	require.Error(t, validKey("has space"))
	require.Error(t, validKey(strings.Repeat("k", maxMemcachedKey+1)))
	require.Error(t, validKey(""))
	require.NoError(t, validKey("factorial:10"))
}

func TestExptime(t *testing.T) {
	require.Equal(t, int64(0), exptime(0))
	require.Equal(t, int64(1), exptime(10*time.Millisecond))
	require.Equal(t, int64(60), exptime(time.Minute))
	abs := exptime(31 * 24 * time.Hour)
	require.Greater(t, abs, time.Now().Unix())
}
