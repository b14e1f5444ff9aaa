package benchmark

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jamiealquiza/tachymeter"
)

// ErrEmptyWorkload is returned when reducing a workload with no samples.
var ErrEmptyWorkload = errors.New("empty workload")

// Outcome classifies a get-style operation.
type Outcome int8

const (
	OutcomeNone Outcome = iota
	OutcomeHit
	OutcomeMiss
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	}
	return "none"
}

// Sample is one timed operation.
type Sample struct {
	Index    int
	Duration time.Duration
	Outcome  Outcome
}

// Distribution holds optional latency percentiles.
type Distribution struct {
	P50    time.Duration `json:"p50"`
	P75    time.Duration `json:"p75"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	P999   time.Duration `json:"p999"`
	StdDev time.Duration `json:"stddev"`
}

// Result is the reduced outcome of one workload against one backend.
type Result struct {
	Workload     string        `json:"workload"`
	Backend      string        `json:"backend"`
	Count        int           `json:"count"`
	Total        time.Duration `json:"total"`
	Average      time.Duration `json:"average"`
	Min          time.Duration `json:"min"`
	Max          time.Duration `json:"max"`
	Hits         int           `json:"hits"`
	Misses       int           `json:"misses"`
	Distribution *Distribution `json:"distribution,omitempty"`
	// Logical is the workload's backend-independent answer, if it has one.
	Logical string `json:"logical,omitempty"`
}

// HitRate returns hits as a percentage of get-style operations, or 0.
func (r Result) HitRate() float64 {
	gets := r.Hits + r.Misses
	if gets == 0 {
		return 0
	}
	return float64(r.Hits) / float64(gets) * 100
}

// OpsPerSec returns throughput implied by the average latency.
func (r Result) OpsPerSec() float64 {
	if r.Average <= 0 {
		return 0
	}
	return float64(time.Second) / float64(r.Average)
}

// Reducer folds samples online. Percentiles, when enabled, keep the
// samples for the life of the reducer.
type Reducer struct {
	workload, backend string

	count      int
	total      time.Duration
	min, max   time.Duration
	hits, miss int

	// Welford running variance, in float nanoseconds.
	mean, m2 float64

	tach *tachymeter.Tachymeter
}

// NewReducer returns a reducer. sizeHint bounds the retained samples when
// percentiles is set.
func NewReducer(workload, backend string, percentiles bool, sizeHint int) *Reducer {
	r := &Reducer{workload: workload, backend: backend}
	if percentiles {
		if sizeHint < 1 {
			sizeHint = 1
		}
		r.tach = tachymeter.New(&tachymeter.Config{Size: sizeHint})
	}
	return r
}

// Add folds one sample.
func (r *Reducer) Add(s Sample) {
	d := s.Duration
	if d < 0 {
		d = 0
	}
	if r.count == 0 || d < r.min {
		r.min = d
	}
	if d > r.max {
		r.max = d
	}
	r.count++
	r.total += d

	delta := float64(d) - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (float64(d) - r.mean)

	switch s.Outcome {
	case OutcomeHit:
		r.hits++
	case OutcomeMiss:
		r.miss++
	}
	if r.tach != nil {
		r.tach.AddTime(d)
	}
}

// Count returns the number of samples folded so far.
func (r *Reducer) Count() int { return r.count }

// Result returns the reduced statistics.
func (r *Reducer) Result() (Result, error) {
	if r.count == 0 {
		return Result{}, fmt.Errorf("%s on %s: %w", r.workload, r.backend, ErrEmptyWorkload)
	}
	res := Result{
		Workload: r.workload,
		Backend:  r.backend,
		Count:    r.count,
		Total:    r.total,
		Average:  r.total / time.Duration(r.count),
		Min:      r.min,
		Max:      r.max,
		Hits:     r.hits,
		Misses:   r.miss,
	}
	if r.tach != nil {
		m := r.tach.Calc()
		res.Distribution = &Distribution{
			P50:    m.Time.P50,
			P75:    m.Time.P75,
			P95:    m.Time.P95,
			P99:    m.Time.P99,
			P999:   m.Time.P999,
			StdDev: time.Duration(math.Sqrt(r.m2 / float64(r.count))),
		}
	}
	return res, nil
}
