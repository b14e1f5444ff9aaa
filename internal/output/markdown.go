package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tstromberg/cachebench/internal/benchmark"
)

// WriteMarkdown writes benchmark results to a Markdown file.
func WriteMarkdown(filename string, results Results, commandLine string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return RenderMarkdown(f, results, commandLine)
}

// RenderMarkdown writes the Markdown report to out.
func RenderMarkdown(out io.Writer, results Results, commandLine string) error {
	var werr error
	w := func(format string, args ...any) {
		if werr == nil {
			_, werr = fmt.Fprintf(out, format, args...)
		}
	}

	w("# cachebench Results\n\n")
	w("```\n")
	w("Command: %s\n", commandLine)
	w("Environment: %s/%s, %d CPUs, %s\n", results.MachineInfo.OS, results.MachineInfo.Arch, results.MachineInfo.NumCPU, results.MachineInfo.GoVersion)
	if results.MachineInfo.Clock != "" {
		w("Clock: %s\n", results.MachineInfo.Clock)
	}
	w("```\n\n")

	if len(results.Workloads) > 0 {
		w("## Workloads\n\n")
		for _, wd := range results.Workloads {
			writeWorkloadMarkdown(w, wd)
		}
	}

	if len(results.Errors) > 0 {
		w("## Errors\n\n")
		for _, e := range results.Errors {
			w("- %s\n", e)
		}
		w("\n")
	}

	// Rankings
	if len(results.Rankings) > 0 {
		w("## Overall Rankings\n\n")
		w("| Rank | Cache         | Score | Gold | Silver | Bronze |\n")
		w("|------|---------------|-------|------|--------|--------|\n")
		for _, r := range results.Rankings {
			w("| %4d | %-13s | %5.0f | %4d | %6d | %6d |\n", r.Rank, r.Name, r.Score, r.Gold, r.Silver, r.Bronze)
		}
		w("\n")
	}

	if results.MedalTable != nil {
		for _, cat := range results.MedalTable.Categories {
			w("### %s medals\n\n", cat.Name)
			w("| Workload      | Gold                 | Silver               | Bronze               |\n")
			w("|---------------|----------------------|----------------------|----------------------|\n")
			for _, bm := range cat.Benchmarks {
				w("| %-13s | %-20s | %-20s | %-20s |\n", bm.Name,
					strings.Join(bm.Gold, ", "), strings.Join(bm.Silver, ", "), strings.Join(bm.Bronze, ", "))
			}
			w("\n")
		}
	}

	return werr
}

func writeWorkloadMarkdown(w func(string, ...any), wd WorkloadData) {
	if len(wd.Results) == 0 {
		return
	}
	sorted := ByAverage(wd.Results)
	withDist := hasDistribution(sorted)

	w("### %s\n\n", wd.Name)
	w("| Backend       |  Count |   Total ms |   Avg us |   Min us |   Max us |   Hit %% |")
	if withDist {
		w("   p50 us |   p99 us |")
	}
	w("\n|---------------|--------|------------|----------|----------|----------|---------|")
	if withDist {
		w("----------|----------|")
	}
	w("\n")

	for _, r := range sorted {
		w("| %-13s | %6d | %10.3f | %8.3f | %8.3f | %8.3f | %6.2f%% |",
			r.Backend, r.Count, float64(r.Total.Microseconds())/1e3, Micros(r.Average), Micros(r.Min), Micros(r.Max), r.HitRate())
		if withDist {
			w(" %8.3f | %8.3f |", Micros(r.Distribution.P50), Micros(r.Distribution.P99))
		}
		w("\n")
	}

	if line := WinnerLine(sorted); line != "" {
		w("\n  %s\n", line)
	}
	w("\n")
}

// WinnerLine describes the fastest backend relative to the runner-up.
// Results must be sorted by ByAverage.
func WinnerLine(sorted []benchmark.Result) string {
	entries := make([]WinnerEntry, 0, len(sorted))
	for _, r := range sorted {
		entries = append(entries, WinnerEntry{Name: r.Backend, Score: Micros(r.Average)})
	}
	winners, runnerUp := FormatWinners(entries)
	if len(winners) == 0 || (len(winners) == 1 && runnerUp == nil) {
		return ""
	}
	if runnerUp == nil {
		return fmt.Sprintf("tie: %s (%.3f us avg)", strings.Join(winners, ", "), entries[0].Score)
	}
	best := entries[0].Score
	if best == 0 {
		return fmt.Sprintf("winner: %s", strings.Join(winners, ", "))
	}
	pct := (runnerUp.Score - best) / best * 100
	return fmt.Sprintf("winner: %s (%.3f us avg, %s is %.1f%% slower)", strings.Join(winners, ", "), best, runnerUp.Name, pct)
}
