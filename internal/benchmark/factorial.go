package benchmark

import (
	"context"
	"fmt"
	"math/big"

	"github.com/tstromberg/cachebench/internal/cache"
	"github.com/tstromberg/cachebench/internal/workload"
)

// Factorial computes n! using b as the memo table: key n holds n! in
// decimal. Concurrent callers may both miss and recompute the same entry;
// the value is a pure function of n, so whichever write lands last is
// still correct.
func Factorial(ctx context.Context, b cache.Backend, n int) (*big.Int, error) {
	if n <= 1 {
		return big.NewInt(1), nil
	}
	key := workload.Key(n)
	v, found, err := b.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		f, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("factorial %d: memo %q is not an integer: %w", n, v, cache.ErrNotInteger)
		}
		return f, nil
	}

	prev, err := Factorial(ctx, b, n-1)
	if err != nil {
		return nil, err
	}
	f := new(big.Int).Mul(prev, big.NewInt(int64(n)))
	if err := b.Set(ctx, key, f.String(), 0); err != nil {
		return nil, err
	}
	return f, nil
}

// FactorialSweep times Factorial(k) for k = 1..N on a flushed backend.
// Each call after the first reuses the previous memo entry. The logical
// result is N! in decimal.
func FactorialSweep(ctx context.Context, b cache.Backend, spec workload.Spec, smp Sampler, emit Emit) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	var last *big.Int
	for k := 1; k <= spec.N; k++ {
		d, err := smp.Time(func() error {
			var err error
			last, err = Factorial(ctx, b, k)
			return err
		})
		if err != nil {
			return "", err
		}
		emit(Sample{Index: k - 1, Duration: d})
	}
	return last.String(), nil
}
