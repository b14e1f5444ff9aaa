package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options describes how to open one backend.
type Options struct {
	// Kind selects the implementation (see AvailableNames). Defaults to Name.
	Kind string
	// Name identifies the backend in results. Defaults to Kind.
	Name string

	// Addrs, Password, DB and Timeout apply to network backends.
	Addrs    []string
	Password string
	DB       int
	Timeout  time.Duration

	// Capacity is the entry capacity of in-process backends.
	Capacity int

	Profile Profile
	Logger  *zap.Logger
}

// opener connects a network backend.
type opener func(ctx context.Context, opts Options) (Backend, error)

type localEntry struct {
	policy  string
	factory storeFactory
}

// remoteRegistry maps backend kinds to their network openers.
var remoteRegistry = map[string]opener{
	"redis":     NewRedis,
	"valkey":    NewValkey,
	"memcached": NewMemcached,
}

// localRegistry maps backend kinds to in-process store factories.
var localRegistry = map[string]localEntry{
	"multicache":    {"s3-fifo", newMulticache},
	"otter":         {"w-tinylfu", newOtter},
	"theine":        {"w-tinylfu", newTheine},
	"ttlcache":      {"lru", newTTLCache},
	"ristretto":     {"sampled-lfu", newRistretto},
	"tinylfu":       {"tinylfu", newTinyLFU},
	"sieve":         {"sieve", newSieve},
	"s3-fifo":       {"s3-fifo", newS3FIFO},
	"freelru-shard": {"lru", newFreeLRUSharded},
	"freelru-sync":  {"lru", newFreeLRUSynced},
	"freecache":     {"approx-lru", newFreecache},
	"2q":            {"2q", newTwoQueue},
	"s4lru":         {"s4lru", newS4LRU},
	"clock":         {"clock", newClock},
	"lru":           {"lru", newLRU},
}

// defaultOrder defines the display order for backends.
var defaultOrder = []string{
	"redis", "valkey", "memcached",
	"multicache", "otter", "theine", "ttlcache", "ristretto", "tinylfu", "sieve", "s3-fifo",
	"freelru-shard", "freelru-sync", "freecache", "2q", "s4lru", "clock", "lru",
}

// AvailableNames returns every backend kind Open understands.
func AvailableNames() []string {
	return defaultOrder
}

// IsRemote reports whether kind talks to an external server.
func IsRemote(kind string) bool {
	_, ok := remoteRegistry[kind]
	return ok
}

// Open connects (or constructs) a backend and applies its tuning profile.
func Open(ctx context.Context, opts Options) (Backend, error) {
	if opts.Kind == "" {
		opts.Kind = opts.Name
	}
	if opts.Name == "" {
		opts.Name = opts.Kind
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var b Backend
	if open, ok := remoteRegistry[opts.Kind]; ok {
		var err error
		if b, err = open(ctx, opts); err != nil {
			return nil, err
		}
	} else if e, ok := localRegistry[opts.Kind]; ok {
		b = newLocal(opts.Name, e.policy, e.factory, opts.Capacity, opts.Logger)
	} else {
		return nil, fmt.Errorf("unknown backend kind %q", opts.Kind)
	}

	if !opts.Profile.IsZero() {
		if err := b.Configure(ctx, opts.Profile); err != nil {
			b.Close() //nolint:errcheck,gosec // configure error takes precedence
			return nil, fmt.Errorf("configure %s: %w", opts.Name, err)
		}
	}
	return b, nil
}
