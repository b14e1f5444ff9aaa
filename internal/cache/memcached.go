package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

const (
	defaultMemcachedAddr = "localhost:11211"
	maxMemcachedKey      = 250
	memcachedPoolSize    = 8
	// Expiry values above 30 days are read by memcached as unix timestamps.
	maxRelativeExpiry = 30 * 24 * time.Hour
)

var errInvalidKey = errors.New("invalid memcached key")

// mcConn is one text-protocol connection.
type mcConn struct {
	nc net.Conn
	rw *bufio.ReadWriter
}

// mcServer holds a bounded pool of idle connections to one server.
type mcServer struct {
	addr    string
	timeout time.Duration
	idle    chan *mcConn
}

func (s *mcServer) get(ctx context.Context) (*mcConn, error) {
	select {
	case c := <-s.idle:
		return c, nil
	default:
	}
	d := net.Dialer{Timeout: s.timeout}
	nc, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, err
	}
	return &mcConn{nc: nc, rw: bufio.NewReadWriter(bufio.NewReader(nc), bufio.NewWriter(nc))}, nil
}

func (s *mcServer) put(c *mcConn) {
	select {
	case s.idle <- c:
	default:
		c.nc.Close() //nolint:errcheck,gosec // pool full
	}
}

func (s *mcServer) close() {
	for {
		select {
		case c := <-s.idle:
			c.nc.Close() //nolint:errcheck,gosec // shutting down
		default:
			return
		}
	}
}

type memcachedBackend struct {
	name    string
	servers []*mcServer
	logger  *zap.Logger
}

// NewMemcached connects to one or more memcached servers over the text
// protocol. Keys are spread across servers by murmur3 hash.
func NewMemcached(ctx context.Context, opts Options) (Backend, error) {
	addrs := opts.Addrs
	if len(addrs) == 0 {
		addrs = []string{defaultMemcachedAddr}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	m := &memcachedBackend{name: opts.Name, logger: opts.Logger}
	for _, a := range addrs {
		m.servers = append(m.servers, &mcServer{addr: a, timeout: timeout, idle: make(chan *mcConn, memcachedPoolSize)})
	}
	for _, s := range m.servers {
		line, err := m.roundTrip(ctx, s, "version\r\n", nil)
		if err != nil {
			m.Close() //nolint:errcheck,gosec // connect error takes precedence
			return nil, fmt.Errorf("memcached %s: %w", s.addr, err)
		}
		if !strings.HasPrefix(line, "VERSION") {
			m.Close() //nolint:errcheck,gosec // connect error takes precedence
			return nil, fmt.Errorf("memcached %s: unexpected reply %q: %w", s.addr, line, ErrBackendUnavailable)
		}
		opts.Logger.Info("connected", zap.String("backend", opts.Name), zap.String("addr", s.addr), zap.String("version", line))
	}
	return m, nil
}

func (m *memcachedBackend) Name() string { return m.name }

func (m *memcachedBackend) pick(key string) *mcServer {
	if len(m.servers) == 1 {
		return m.servers[0]
	}
	h := murmur3.Sum32WithSeed([]byte(key), 0)
	return m.servers[h%uint32(len(m.servers))]
}

// roundTrip writes cmd and returns the first reply line without its CRLF.
// When read is non-nil it consumes the rest of a multi-line reply.
func (m *memcachedBackend) roundTrip(ctx context.Context, s *mcServer, cmd string, read func(line string, rw *bufio.ReadWriter) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c, err := s.get(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		c.nc.SetDeadline(dl) //nolint:errcheck,gosec // surfaced by the read
	} else {
		c.nc.SetDeadline(time.Now().Add(s.timeout)) //nolint:errcheck,gosec // surfaced by the read
	}

	line, err := exchange(c.rw, cmd, read)
	if err != nil {
		c.nc.Close() //nolint:errcheck,gosec // broken connection
		return "", fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	s.put(c)
	return line, nil
}

func exchange(rw *bufio.ReadWriter, cmd string, read func(string, *bufio.ReadWriter) error) (string, error) {
	if _, err := rw.WriteString(cmd); err != nil {
		return "", err
	}
	if err := rw.Flush(); err != nil {
		return "", err
	}
	line, err := rw.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if read != nil {
		if err := read(line, rw); err != nil {
			return "", err
		}
	}
	return line, nil
}

// replyError turns a protocol error line into an error, or nil.
func replyError(line string) error {
	switch {
	case line == "ERROR", strings.HasPrefix(line, "CLIENT_ERROR"), strings.HasPrefix(line, "SERVER_ERROR"):
		return errors.New(line)
	}
	return nil
}

func validKey(key string) error {
	if key == "" || len(key) > maxMemcachedKey {
		return fmt.Errorf("%w: length %d", errInvalidKey, len(key))
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return fmt.Errorf("%w: %q", errInvalidKey, key)
		}
	}
	return nil
}

// exptime converts a ttl to memcached's expiry field.
func exptime(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	secs := int64((ttl + time.Second - 1) / time.Second)
	if ttl > maxRelativeExpiry {
		return time.Now().Unix() + secs
	}
	return secs
}

func (m *memcachedBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := validKey(key); err != nil {
		return err
	}
	cmd := fmt.Sprintf("set %s 0 %d %d\r\n%s\r\n", key, exptime(ttl), len(value), value)
	line, err := m.roundTrip(ctx, m.pick(key), cmd, nil)
	if err != nil {
		return fmt.Errorf("%s set %q: %w", m.name, key, err)
	}
	if line != "STORED" {
		return fmt.Errorf("%s set %q: unexpected reply %q", m.name, key, line)
	}
	return nil
}

func (m *memcachedBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	var (
		value string
		found bool
	)
	_, err := m.roundTrip(ctx, m.pick(key), "get "+key+"\r\n", func(line string, rw *bufio.ReadWriter) error {
		if line == "END" {
			return nil
		}
		// VALUE <key> <flags> <bytes>
		f := strings.Fields(line)
		if len(f) < 4 || f[0] != "VALUE" {
			return fmt.Errorf("unexpected reply %q", line)
		}
		n, err := strconv.Atoi(f[3])
		if err != nil {
			return fmt.Errorf("bad length in %q", line)
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(rw, buf); err != nil {
			return err
		}
		end, err := rw.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.TrimRight(end, "\r\n") != "END" {
			return fmt.Errorf("unexpected trailer %q", end)
		}
		value, found = string(buf[:n]), true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%s get %q: %w", m.name, key, err)
	}
	return value, found, nil
}

// Incr uses incr for positive deltas and decr for negative ones. memcached
// counters are unsigned: decr stops at zero.
func (m *memcachedBackend) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	if err := validKey(key); err != nil {
		return 0, err
	}
	op := "incr"
	if delta < 0 {
		op, delta = "decr", -delta
	}
	line, err := m.roundTrip(ctx, m.pick(key), fmt.Sprintf("%s %s %d\r\n", op, key, delta), nil)
	if err != nil {
		return 0, fmt.Errorf("%s incr %q: %w", m.name, key, err)
	}
	switch {
	case line == "NOT_FOUND":
		return 0, fmt.Errorf("%s incr %q: %w", m.name, key, ErrNotFound)
	case strings.HasPrefix(line, "CLIENT_ERROR"):
		return 0, fmt.Errorf("%s incr %q: %w", m.name, key, ErrNotInteger)
	}
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s incr %q: unexpected reply %q", m.name, key, line)
	}
	return n, nil
}

func (m *memcachedBackend) Flush(ctx context.Context) error {
	for _, s := range m.servers {
		line, err := m.roundTrip(ctx, s, "flush_all\r\n", nil)
		if err != nil {
			return fmt.Errorf("%s flush_all %s: %w", m.name, s.addr, err)
		}
		if line != "OK" {
			return fmt.Errorf("%s flush_all %s: unexpected reply %q", m.name, s.addr, line)
		}
	}
	return nil
}

// Configure maps MaxMemoryMB onto cache_memlimit. memcached has a single
// slab-LRU policy, so EvictionPolicy and Samples are reported and skipped.
func (m *memcachedBackend) Configure(ctx context.Context, p Profile) error {
	if p.EvictionPolicy != "" {
		m.logger.Warn("profile field not supported",
			zap.String("backend", m.name), zap.String("field", "eviction_policy"), zap.String("value", p.EvictionPolicy))
	}
	if p.Samples != 0 {
		m.logger.Warn("profile field not supported",
			zap.String("backend", m.name), zap.String("field", "samples"), zap.Int("value", p.Samples))
	}
	if p.MaxMemoryMB <= 0 {
		return nil
	}
	for _, s := range m.servers {
		line, err := m.roundTrip(ctx, s, fmt.Sprintf("cache_memlimit %d\r\n", p.MaxMemoryMB), nil)
		if err != nil {
			return fmt.Errorf("%s cache_memlimit %s: %w", m.name, s.addr, err)
		}
		if rerr := replyError(line); rerr != nil {
			m.logger.Warn("profile field not supported",
				zap.String("backend", m.name), zap.String("field", "max_memory_mb"), zap.Error(rerr))
			continue
		}
		m.logger.Info("applied profile field",
			zap.String("backend", m.name), zap.String("addr", s.addr), zap.Int64("max_memory_mb", p.MaxMemoryMB))
	}
	return nil
}

func (m *memcachedBackend) Close() error {
	for _, s := range m.servers {
		s.close()
	}
	return nil
}
