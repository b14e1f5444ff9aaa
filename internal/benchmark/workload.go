package benchmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/tstromberg/cachebench/internal/cache"
	"github.com/tstromberg/cachebench/internal/fetch"
	"github.com/tstromberg/cachebench/internal/workload"
)

var (
	// ErrUnexpectedMiss is returned when a key expected to be present is absent.
	ErrUnexpectedMiss = errors.New("unexpected miss")
	// ErrUnexpectedHit is returned when a key expected to be absent is present.
	ErrUnexpectedHit = errors.New("unexpected hit")
)

// Emit receives each sample in issue order.
type Emit func(Sample)

// Env carries the collaborators a workload may need.
type Env struct {
	Sampler Sampler
	Fetcher fetch.Fetcher
}

// Generate issues spec's timed operations against b. It returns the
// workload's logical result, which is empty for all but factorial.
// Every exported generator rejects an invalid spec before issuing anything.
func Generate(ctx context.Context, b cache.Backend, spec workload.Spec, env Env, emit Emit) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	switch spec.Name {
	case workload.Set:
		return "", SequentialSet(ctx, b, spec, env.Sampler, emit)
	case workload.GetHit:
		return "", SequentialGetHit(ctx, b, spec, env.Sampler, emit)
	case workload.GetMiss:
		return "", SequentialGetMiss(ctx, b, spec, env.Sampler, emit)
	case workload.HalfMiss, workload.RatioMiss, workload.Zipf:
		return "", gets(ctx, b, spec.Sequence(), OutcomeNone, env.Sampler, emit)
	case workload.Increment:
		return "", IncrementSweep(ctx, b, spec, env.Sampler, emit)
	case workload.Factorial:
		return FactorialSweep(ctx, b, spec, env.Sampler, emit)
	case workload.APIProxy:
		return "", APICacheProxy(ctx, b, env.Fetcher, spec, env.Sampler, emit)
	case workload.APIDirect:
		return "", APIDirect(ctx, env.Fetcher, spec, env.Sampler, emit)
	}
	return "", fmt.Errorf("%w: %q", workload.ErrUnknownWorkload, spec.Name)
}

// SequentialSet writes keys [0, N), each holding its own name.
func SequentialSet(ctx context.Context, b cache.Backend, spec workload.Spec, smp Sampler, emit Emit) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	for i, k := range spec.Sequence() {
		key := workload.Key(k)
		d, err := smp.Time(func() error { return b.Set(ctx, key, key, spec.TTL) })
		if err != nil {
			return err
		}
		emit(Sample{Index: i, Duration: d})
	}
	return nil
}

// SequentialGetHit reads keys [0, N), which must all be present.
func SequentialGetHit(ctx context.Context, b cache.Backend, spec workload.Spec, smp Sampler, emit Emit) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	return gets(ctx, b, spec.Sequence(), OutcomeHit, smp, emit)
}

// SequentialGetMiss reads keys N+1..2N, which must all be absent.
func SequentialGetMiss(ctx context.Context, b cache.Backend, spec workload.Spec, smp Sampler, emit Emit) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	return gets(ctx, b, spec.Sequence(), OutcomeMiss, smp, emit)
}

// gets issues one Get per key. A non-none want asserts every outcome.
func gets(ctx context.Context, b cache.Backend, keys []int, want Outcome, smp Sampler, emit Emit) error {
	for i, k := range keys {
		key := workload.Key(k)
		var found bool
		d, err := smp.Time(func() error {
			var err error
			_, found, err = b.Get(ctx, key)
			return err
		})
		if err != nil {
			return err
		}
		out := OutcomeMiss
		if found {
			out = OutcomeHit
		}
		switch {
		case want == OutcomeHit && !found:
			return fmt.Errorf("key %q: %w", key, ErrUnexpectedMiss)
		case want == OutcomeMiss && found:
			return fmt.Errorf("key %q: %w", key, ErrUnexpectedHit)
		}
		emit(Sample{Index: i, Duration: d, Outcome: out})
	}
	return nil
}

// IncrementSweep adds spec.Delta() to each of the preseeded counters [0, N).
func IncrementSweep(ctx context.Context, b cache.Backend, spec workload.Spec, smp Sampler, emit Emit) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	delta := spec.Delta()
	for i, k := range spec.Sequence() {
		key := workload.Key(k)
		d, err := smp.Time(func() error {
			_, err := b.Incr(ctx, key, delta)
			return err
		})
		if err != nil {
			return err
		}
		emit(Sample{Index: i, Duration: d})
	}
	return nil
}
