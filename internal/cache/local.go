package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCapacity is the entry capacity of in-process backends when neither
// Options.Capacity nor Profile.MaxMemoryMB is set.
const DefaultCapacity = 1 << 20

// entrySize estimates bytes per entry (key + value + ~32 bytes overhead) for
// converting a memory ceiling into an entry capacity.
const entrySize = 64

// store is the minimal surface shared by the in-process cache libraries.
type store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Close()
}

// storeFactory creates a store with room for capacity entries.
type storeFactory func(capacity int) store

// local adapts an in-process store to the Backend contract. Flush and
// Configure swap the underlying store. Incr holds the write lock across its
// read-modify-write, so no Set, Flush or other Incr lands in between.
type local struct {
	name    string
	policy  string
	factory storeFactory
	logger  *zap.Logger

	mu        sync.RWMutex
	s         store
	capacity  int
	deadlines *sync.Map // key -> time.Time, only for keys written with a ttl
}

func newLocal(name, policy string, factory storeFactory, capacity int, logger *zap.Logger) *local {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &local{
		name:      name,
		policy:    policy,
		factory:   factory,
		logger:    logger,
		s:         factory(capacity),
		capacity:  capacity,
		deadlines: &sync.Map{},
	}
}

func (l *local) Name() string { return l.name }

func (l *local) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if ttl > 0 {
		l.deadlines.Store(key, time.Now().Add(ttl))
	} else {
		l.deadlines.Delete(key)
	}
	l.s.Set(key, value)
	return nil
}

func (l *local) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.lookup(key)
	return v, ok, nil
}

// lookup reads key, honoring its deadline; callers hold mu.
func (l *local) lookup(key string) (string, bool) {
	if d, ok := l.deadlines.Load(key); ok && time.Now().After(d.(time.Time)) { //nolint:errcheck,revive // type is known from Set
		return "", false
	}
	return l.s.Get(key)
}

func (l *local) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.lookup(key)
	if !ok {
		return 0, fmt.Errorf("%s incr %q: %w", l.name, key, ErrNotFound)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s incr %q: %w", l.name, key, ErrNotInteger)
	}
	n += delta
	// Incr keeps any existing deadline, like INCRBY does.
	l.s.Set(key, strconv.FormatInt(n, 10))
	return n, nil
}

func (l *local) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset(l.capacity)
	return nil
}

// reset replaces the store; callers hold mu.
func (l *local) reset(capacity int) {
	l.s.Close()
	l.s = l.factory(capacity)
	l.capacity = capacity
	l.deadlines = &sync.Map{}
}

func (l *local) Configure(ctx context.Context, p Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.EvictionPolicy != "" && p.EvictionPolicy != l.policy {
		// The policy is fixed by the library.
		l.logger.Warn("profile field not supported",
			zap.String("backend", l.name),
			zap.String("field", "eviction_policy"),
			zap.String("value", p.EvictionPolicy),
			zap.String("policy", l.policy))
	}
	if p.Samples != 0 {
		l.logger.Warn("profile field not supported",
			zap.String("backend", l.name),
			zap.String("field", "samples"),
			zap.Int("value", p.Samples))
	}
	if p.MaxMemoryMB > 0 {
		capacity := int(p.MaxMemoryMB << 20 / entrySize)
		l.mu.Lock()
		l.reset(capacity)
		l.mu.Unlock()
		l.logger.Info("resized in-process cache",
			zap.String("backend", l.name),
			zap.Int64("max_memory_mb", p.MaxMemoryMB),
			zap.Int("capacity", capacity))
	}
	return nil
}

func (l *local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.Close()
	return nil
}
