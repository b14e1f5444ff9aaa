package benchmark

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tstromberg/cachebench/internal/cache"
	"github.com/tstromberg/cachebench/internal/fetch"
	"github.com/tstromberg/cachebench/internal/logging"
	"github.com/tstromberg/cachebench/internal/workload"
)

// ErrBackendDivergence is returned when backends disagree on a workload's
// logical result.
var ErrBackendDivergence = errors.New("backend divergence")

// DirectBackend is the backend name reported for api-direct results.
const DirectBackend = "direct"

// Phase names the step of a run that failed.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseFlush    Phase = "flush"
	PhaseSetup    Phase = "setup"
	PhaseWorkload Phase = "workload"
	PhaseVerify   Phase = "verify"
)

// RunError reports where a run stopped.
type RunError struct {
	Workload string
	Backend  string
	Phase    Phase
	// Iteration is the index of the failed timed operation, or -1 outside
	// the timed phase.
	Iteration int
	Err       error
}

func (e *RunError) Error() string {
	if e.Iteration >= 0 {
		return fmt.Sprintf("%s on %s: %s iteration %d: %v", e.Workload, e.Backend, e.Phase, e.Iteration, e.Err)
	}
	return fmt.Sprintf("%s on %s: %s: %v", e.Workload, e.Backend, e.Phase, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Runner drives one workload across backends, one backend at a time.
type Runner struct {
	Backends []cache.Backend
	Sampler  Sampler
	Fetcher  fetch.Fetcher
	// Percentiles retains samples per run to report a Distribution.
	Percentiles bool
	Logger      *zap.Logger
}

func (r *Runner) logger(ctx context.Context) *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.WithContext(ctx)
}

// Run validates spec and runs it against every backend in order. On error
// it returns the results completed so far along with a *RunError. No
// operation is retried.
func (r *Runner) Run(ctx context.Context, spec workload.Spec) ([]Result, error) {
	name := string(spec.Name)
	if err := spec.Validate(); err != nil {
		return nil, &RunError{Workload: name, Phase: PhaseValidate, Iteration: -1, Err: err}
	}
	env := Env{Sampler: r.Sampler, Fetcher: r.Fetcher}

	if spec.Name == workload.APIDirect {
		res, err := r.runOne(ctx, nil, DirectBackend, spec, env)
		if err != nil {
			return nil, err
		}
		return []Result{res}, nil
	}

	var results []Result
	for _, b := range r.Backends {
		res, err := r.runOne(ctx, b, b.Name(), spec, env)
		if err != nil {
			return results, err
		}
		if spec.HasLogicalResult() && len(results) > 0 && res.Logical != results[0].Logical {
			return results, &RunError{
				Workload: name, Backend: b.Name(), Phase: PhaseVerify, Iteration: -1,
				Err: fmt.Errorf("%w: %s disagrees with %s", ErrBackendDivergence, b.Name(), results[0].Backend),
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, b cache.Backend, backend string, spec workload.Spec, env Env) (Result, error) {
	name := string(spec.Name)
	log := r.logger(ctx).With(zap.String("workload", name), zap.String("backend", backend))
	fail := func(p Phase, i int, err error) (Result, error) {
		log.Warn("run failed", zap.String("phase", string(p)), zap.Int("iteration", i), zap.Error(err))
		return Result{}, &RunError{Workload: name, Backend: backend, Phase: p, Iteration: i, Err: err}
	}

	if b != nil {
		if err := b.Flush(ctx); err != nil {
			return fail(PhaseFlush, -1, err)
		}
		if err := preload(ctx, b, spec); err != nil {
			return fail(PhaseSetup, -1, err)
		}
	}

	log.Debug("starting", zap.Int("n", spec.N))
	red := NewReducer(name, backend, r.Percentiles, spec.N)
	logical, err := Generate(ctx, b, spec, env, red.Add)
	if err != nil {
		return fail(PhaseWorkload, red.Count(), err)
	}
	res, err := red.Result()
	if err != nil {
		return fail(PhaseWorkload, red.Count(), err)
	}
	res.Logical = logical
	log.Info("finished",
		zap.Int("count", res.Count),
		zap.Duration("total", res.Total),
		zap.Duration("average", res.Average),
		zap.Int("hits", res.Hits),
		zap.Int("misses", res.Misses))
	return res, nil
}

// preload performs the untimed setup spec expects.
func preload(ctx context.Context, b cache.Backend, spec workload.Spec) error {
	p := spec.Preload()
	if p == workload.PreloadNone {
		return nil
	}
	for _, k := range workload.Range(0, spec.N) {
		key := workload.Key(k)
		value := key
		if p == workload.PreloadCounters {
			value = "0"
		}
		if err := b.Set(ctx, key, value, spec.TTL); err != nil {
			return err
		}
	}
	return nil
}

// WorkloadDone is called by RunSuite after each workload, with that
// workload's results and error.
type WorkloadDone func(spec workload.Spec, results []Result, err error)

// RunSuite runs every spec in order, keeping the results of workloads that
// succeed. Failures are combined; a canceled context stops the suite.
// done may be nil.
func (r *Runner) RunSuite(ctx context.Context, specs []workload.Spec, done WorkloadDone) ([]Result, error) {
	var (
		all  []Result
		errs error
	)
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return all, multierr.Append(errs, err)
		}
		res, err := r.Run(ctx, spec)
		all = append(all, res...)
		errs = multierr.Append(errs, err)
		if done != nil {
			done(spec, res, err)
		}
	}
	return all, errs
}
