package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"
)

type valkeyBackend struct {
	name   string
	client valkey.Client
	incr   *valkey.Lua
	logger *zap.Logger
}

// NewValkey connects to a Valkey server.
// Addresses default to "localhost:6379".
func NewValkey(ctx context.Context, opts Options) (Backend, error) {
	addrs := opts.Addrs
	if len(addrs) == 0 {
		addrs = []string{defaultRedisAddr}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      addrs,
		Password:         opts.Password,
		SelectDB:         opts.DB,
		Dialer:           net.Dialer{Timeout: timeout},
		ConnWriteTimeout: timeout,
		DisableCache:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w: %w", ErrBackendUnavailable, err)
	}

	// Verify connectivity with PING
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w: %w", ErrBackendUnavailable, err)
	}

	opts.Logger.Info("connected", zap.String("backend", opts.Name), zap.Strings("addrs", addrs))
	return &valkeyBackend{
		name:   opts.Name,
		client: client,
		incr:   valkey.NewLuaScript(incrExisting),
		logger: opts.Logger,
	}, nil
}

func (v *valkeyBackend) Name() string { return v.name }

func (v *valkeyBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = v.client.B().Set().Key(key).Value(value).PxMilliseconds(pxMillis(ttl)).Build()
	} else {
		cmd = v.client.B().Set().Key(key).Value(value).Build()
	}
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return v.wrap("set", key, err)
	}
	return nil
}

func (v *valkeyBackend) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, v.wrap("get", key, err)
	}
	return s, true, nil
}

func (v *valkeyBackend) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := v.incr.Exec(ctx, v.client, []string{key}, []string{strconv.FormatInt(delta, 10)}).AsInt64()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, fmt.Errorf("%s incr %q: %w", v.name, key, ErrNotFound)
		}
		return 0, v.wrap("incr", key, err)
	}
	return n, nil
}

// Flush clears only the selected database; other databases on the server
// are left alone.
func (v *valkeyBackend) Flush(ctx context.Context) error {
	if err := v.client.Do(ctx, v.client.B().Flushdb().Build()).Error(); err != nil {
		return v.wrap("flushdb", "", err)
	}
	return nil
}

func (v *valkeyBackend) Configure(ctx context.Context, p Profile) error {
	for _, kv := range redisConfigPairs(p) {
		cmd := v.client.B().Arbitrary("CONFIG", "SET").Args(kv[0], kv[1]).Build()
		if err := v.client.Do(ctx, cmd).Error(); err != nil {
			if _, ok := valkey.IsValkeyErr(err); ok {
				v.logger.Warn("profile field not supported",
					zap.String("backend", v.name), zap.String("field", kv[0]), zap.Error(err))
				continue
			}
			return v.wrap("config set", kv[0], err)
		}
		v.logger.Info("applied profile field",
			zap.String("backend", v.name), zap.String("field", kv[0]), zap.String("value", kv[1]))
	}
	return nil
}

func (v *valkeyBackend) Close() error {
	v.client.Close()
	return nil
}

func (v *valkeyBackend) wrap(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s %q: %w", v.name, op, key, err)
	}
	if ve, ok := valkey.IsValkeyErr(err); ok {
		if strings.Contains(ve.Error(), "not an integer") {
			return fmt.Errorf("%s %s %q: %w", v.name, op, key, ErrNotInteger)
		}
		return fmt.Errorf("%s %s %q: %w", v.name, op, key, err)
	}
	return fmt.Errorf("%s %s %q: %w: %w", v.name, op, key, ErrBackendUnavailable, err)
}
