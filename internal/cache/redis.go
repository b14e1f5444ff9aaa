package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const defaultRedisAddr = "localhost:6379"

// incrExisting increments a key only if it already exists, returning nil
// otherwise. Plain INCRBY would create the key at zero.
const incrExisting = `if redis.call('EXISTS', KEYS[1]) == 0 then return false end
return redis.call('INCRBY', KEYS[1], ARGV[1])`

type redisBackend struct {
	name   string
	client rueidis.Client
	incr   *rueidis.Lua
	logger *zap.Logger
}

// NewRedis connects to a Redis server using rueidis.
func NewRedis(ctx context.Context, opts Options) (Backend, error) {
	addrs := opts.Addrs
	if len(addrs) == 0 {
		addrs = []string{defaultRedisAddr}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      addrs,
		Password:         opts.Password,
		SelectDB:         opts.DB,
		Dialer:           net.Dialer{Timeout: timeout},
		ConnWriteTimeout: timeout,
		DisableCache:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w: %w", ErrBackendUnavailable, err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w: %w", ErrBackendUnavailable, err)
	}

	opts.Logger.Info("connected", zap.String("backend", opts.Name), zap.Strings("addrs", addrs))
	return &redisBackend{
		name:   opts.Name,
		client: client,
		incr:   rueidis.NewLuaScript(incrExisting),
		logger: opts.Logger,
	}, nil
}

func (r *redisBackend) Name() string { return r.name }

func (r *redisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = r.client.B().Set().Key(key).Value(value).PxMilliseconds(pxMillis(ttl)).Build()
	} else {
		cmd = r.client.B().Set().Key(key).Value(value).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return r.wrap("set", key, err)
	}
	return nil
}

func (r *redisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Do(ctx, r.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", false, nil
		}
		return "", false, r.wrap("get", key, err)
	}
	return v, true, nil
}

func (r *redisBackend) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.incr.Exec(ctx, r.client, []string{key}, []string{strconv.FormatInt(delta, 10)}).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, fmt.Errorf("%s incr %q: %w", r.name, key, ErrNotFound)
		}
		return 0, r.wrap("incr", key, err)
	}
	return n, nil
}

// Flush clears only the selected database; other databases on the server
// are left alone.
func (r *redisBackend) Flush(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Flushdb().Build()).Error(); err != nil {
		return r.wrap("flushdb", "", err)
	}
	return nil
}

func (r *redisBackend) Configure(ctx context.Context, p Profile) error {
	for _, kv := range redisConfigPairs(p) {
		cmd := r.client.B().Arbitrary("CONFIG", "SET").Args(kv[0], kv[1]).Build()
		if err := r.client.Do(ctx, cmd).Error(); err != nil {
			if _, ok := rueidis.IsRedisErr(err); ok {
				// Managed servers commonly reject CONFIG; keep going.
				r.logger.Warn("profile field not supported",
					zap.String("backend", r.name), zap.String("field", kv[0]), zap.Error(err))
				continue
			}
			return r.wrap("config set", kv[0], err)
		}
		r.logger.Info("applied profile field",
			zap.String("backend", r.name), zap.String("field", kv[0]), zap.String("value", kv[1]))
	}
	return nil
}

func (r *redisBackend) Close() error {
	r.client.Close()
	return nil
}

// wrap classifies a client error. Server replies are command errors; anything
// else means the connection is gone.
func (r *redisBackend) wrap(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s %q: %w", r.name, op, key, err)
	}
	if re, ok := rueidis.IsRedisErr(err); ok {
		if strings.Contains(re.Error(), "not an integer") {
			return fmt.Errorf("%s %s %q: %w", r.name, op, key, ErrNotInteger)
		}
		return fmt.Errorf("%s %s %q: %w", r.name, op, key, err)
	}
	return fmt.Errorf("%s %s %q: %w: %w", r.name, op, key, ErrBackendUnavailable, err)
}

// redisConfigPairs maps a profile onto CONFIG SET parameters, shared by the
// Redis and Valkey adapters.
func redisConfigPairs(p Profile) [][2]string {
	var pairs [][2]string
	if p.MaxMemoryMB > 0 {
		pairs = append(pairs, [2]string{"maxmemory", strconv.FormatInt(p.MaxMemoryMB, 10) + "mb"})
	}
	if p.EvictionPolicy != "" {
		pairs = append(pairs, [2]string{"maxmemory-policy", p.EvictionPolicy})
	}
	if p.Samples > 0 {
		pairs = append(pairs, [2]string{"maxmemory-samples", strconv.Itoa(p.Samples)})
	}
	return pairs
}

// pxMillis rounds ttl up to whole milliseconds; PX rejects zero.
func pxMillis(ttl time.Duration) int64 {
	return max((ttl+time.Millisecond-1).Milliseconds(), 1)
}
