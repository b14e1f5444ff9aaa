// Package output provides result formatting and export.
package output

import (
	"time"

	"github.com/tstromberg/cachebench/internal/benchmark"
)

// Results holds everything a report renders.
type Results struct {
	Timestamp   string
	Workloads   []WorkloadData
	Errors      []string
	Rankings    []Ranking
	MedalTable  *MedalTable
	MachineInfo MachineInfo
}

// WorkloadData holds one workload's results, one per backend.
type WorkloadData struct {
	Name    string
	Results []benchmark.Result
}

// MachineInfo holds information about the benchmark environment.
type MachineInfo struct {
	OS          string
	Arch        string
	NumCPU      int
	GoVersion   string
	Clock       string
	CommandLine string
}

// Ranking represents an overall ranking entry.
type Ranking struct {
	Rank   int
	Name   string
	Score  float64
	Gold   int
	Silver int
	Bronze int
}

// BenchmarkMedal represents a single benchmark's top 3 placements.
// Ties share a placement.
type BenchmarkMedal struct {
	Name   string
	Gold   []string
	Silver []string
	Bronze []string
}

// CategoryMedals holds medals for a benchmark category with its winner.
type CategoryMedals struct {
	Name       string
	Benchmarks []BenchmarkMedal
	Rankings   []Ranking
}

// MedalTable holds all benchmark medals organized by category.
type MedalTable struct {
	Categories []CategoryMedals
}

// Group splits results by workload, keeping first-seen order.
func Group(results []benchmark.Result) []WorkloadData {
	var out []WorkloadData
	idx := map[string]int{}
	for _, r := range results {
		i, ok := idx[r.Workload]
		if !ok {
			i = len(out)
			idx[r.Workload] = i
			out = append(out, WorkloadData{Name: r.Workload})
		}
		out[i].Results = append(out[i].Results, r)
	}
	return out
}

// Micros converts a duration to float microseconds.
func Micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
