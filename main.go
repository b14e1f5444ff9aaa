// cachebench drives identical workloads against key/value cache backends and
// compares their per-operation latency.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"

	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tstromberg/cachebench/internal/benchmark"
	"github.com/tstromberg/cachebench/internal/cache"
	"github.com/tstromberg/cachebench/internal/config"
	"github.com/tstromberg/cachebench/internal/fetch"
	"github.com/tstromberg/cachebench/internal/logging"
	"github.com/tstromberg/cachebench/internal/output"
	"github.com/tstromberg/cachebench/internal/workload"
)

func main() {
	a := cli.NewApp()
	a.Name = "cachebench"
	a.Usage = "Compare key/value cache backends under identical workloads"
	a.Description = "Runs set, get-hit, get-miss, half-miss, ratio-miss, increment, zipf, factorial and API caching workloads against each backend.\n" +
		"   Available backends: " + strings.Join(cache.AvailableNames(), ", ") + "\n" +
		"   Available workloads: " + strings.Join(workloadNames(), ", ")
	a.Flags = append(config.Flags(),
		&cli.BoolFlag{Name: "open", Usage: "Open the HTML report in a web browser after generation"},
	)
	a.Action = Run

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Run ... Application entry point
func Run(c *cli.Context) error {
	cfg, err := config.NewConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := logging.New(cfg.Environment)
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
	ctx = logging.WithFields(ctx, zap.Uint64("seed", cfg.Seed), zap.String("clock", cfg.Clock), zap.Int("n", cfg.N))

	clock, err := benchmark.ClockNamed(cfg.Clock)
	if err != nil {
		return err
	}

	backends, err := openBackends(ctx, cfg, logger)
	defer func() {
		for _, b := range backends {
			if cerr := b.Close(); cerr != nil {
				logger.Warn("close backend", zap.String("backend", b.Name()), zap.Error(cerr))
			}
		}
	}()
	if err != nil {
		return err
	}

	specs := cfg.Specs()
	printHeader(cfg, backends, specs)

	runner := &benchmark.Runner{
		Backends:    backends,
		Sampler:     benchmark.Sampler{Clock: clock},
		Fetcher:     fetch.NewHTTP(cfg.API.Timeout),
		Percentiles: cfg.Percentiles,
	}

	results := output.Results{}
	printSuite("workloads", "per-operation latency")
	all, runErr := runner.RunSuite(ctx, specs, func(spec workload.Spec, res []benchmark.Result, err error) {
		printTest(string(spec.Name), describe(spec))
		if len(res) > 0 {
			printWorkloadTable(res)
		}
		if err != nil {
			fmt.Printf("  error: %v\n\n", err)
			results.Errors = append(results.Errors, err.Error())
		}
	})
	if err := ctx.Err(); err != nil {
		results.Errors = append(results.Errors, err.Error())
	}
	results.Workloads = output.Group(all)

	results.Rankings, results.MedalTable = output.ComputeRankings(results)
	printOverallRanking(results.Rankings)

	commandLine := "cachebench " + strings.Join(os.Args[1:], " ")
	results.MachineInfo = output.MachineInfo{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		NumCPU:      runtime.NumCPU(),
		GoVersion:   runtime.Version(),
		Clock:       cfg.Clock,
		CommandLine: commandLine,
	}

	if err := writeReports(cfg.Output, results, commandLine); err != nil {
		return multierr.Append(runErr, err)
	}
	if c.Bool("open") && cfg.Output.HTML != "" {
		if err := openBrowser(cfg.Output.HTML); err != nil {
			logger.Warn("could not open browser", zap.Error(err))
		}
	}

	if runErr != nil {
		return fmt.Errorf("%d workload(s) failed: %w", len(multierr.Errors(runErr)), runErr)
	}
	return nil
}

// openBackends opens every configured backend, returning those opened so far
// on failure so the caller can close them.
func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]cache.Backend, error) {
	var out []cache.Backend
	for _, opts := range cfg.BackendOptions(logger) {
		b, err := cache.Open(ctx, opts)
		if err != nil {
			return out, fmt.Errorf("open %s: %w", opts.Name, err)
		}
		logger.Debug("opened backend", zap.String("backend", b.Name()), zap.String("kind", opts.Kind))
		out = append(out, b)
	}
	return out, nil
}

func writeReports(o config.OutputConfig, results output.Results, commandLine string) error {
	var errs error
	if o.HTML != "" {
		if err := output.WriteHTML(o.HTML, results, commandLine); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write HTML: %w", err))
		} else {
			fmt.Printf("Results: %s\n", o.HTML)
		}
	}
	if o.Markdown != "" {
		if err := output.WriteMarkdown(o.Markdown, results, commandLine); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write Markdown: %w", err))
		} else {
			fmt.Printf("         %s\n", o.Markdown)
		}
	}
	if o.JSON != "" {
		if err := output.WriteJSON(o.JSON, results, commandLine); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write JSON: %w", err))
		} else {
			fmt.Printf("         %s\n", o.JSON)
		}
	}
	return errs
}

func workloadNames() []string {
	var out []string
	for _, n := range workload.Names() {
		out = append(out, string(n))
	}
	return out
}

func describe(s workload.Spec) string {
	switch s.Name {
	case workload.Set:
		return fmt.Sprintf("%d sets, keys 0..%d", s.N, s.N-1)
	case workload.GetHit:
		return fmt.Sprintf("%d gets of pre-set keys", s.N)
	case workload.GetMiss:
		return fmt.Sprintf("%d gets of absent keys %d..%d", s.N, s.N+1, 2*s.N)
	case workload.HalfMiss:
		return fmt.Sprintf("%d gets, half of them pre-set", s.N)
	case workload.RatioMiss:
		return fmt.Sprintf("%d uniform gets over %d keys (expected hit ratio %.2f)", s.N, workload.RatioSpace(s.N, s.Ratio), s.Ratio)
	case workload.Increment:
		return fmt.Sprintf("%d increments by %d", s.N, s.Delta())
	case workload.Zipf:
		return fmt.Sprintf("%d gets, zipf theta=%.2f over %d keys", s.N, s.Skew(), s.N)
	case workload.Factorial:
		return fmt.Sprintf("memoized factorial 1..%d", s.N)
	case workload.APIProxy:
		return fmt.Sprintf("%d read-through lookups of %s", s.N, s.Path)
	case workload.APIDirect:
		return fmt.Sprintf("%d uncached fetches of %s", s.N, s.Path)
	}
	return ""
}

const lineWidth = 80

func printHeader(cfg *config.Config, backends []cache.Backend, specs []workload.Spec) {
	fmt.Println("cachebench")
	fmt.Println()

	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.Name())
	}
	fmt.Printf("  backends:  %s\n", strings.Join(names, ", "))
	fmt.Printf("  workloads: %d\n", len(specs))
	fmt.Printf("  n:         %d\n", cfg.N)
	fmt.Printf("  clock:     %s\n", cfg.Clock)
	fmt.Println()
}

func printSuite(name, description string) {
	header := fmt.Sprintf("%s: %s ", name, description)
	padding := max(lineWidth-len(header), 4)
	fmt.Printf("%s%s\n\n", header, strings.Repeat("─", padding))
}

func printTest(name, description string) {
	fmt.Printf("  [%s] %s\n\n", name, description)
}

// printWorkloadTable prints one workload's results, fastest first, with winner.
func printWorkloadTable(results []benchmark.Result) {
	sorted := output.ByAverage(results)
	withDist := sorted[0].Distribution != nil

	fmt.Print("  | Backend       |  Count |   Avg us |   Min us |   Max us |   Hit % |")
	if withDist {
		fmt.Print("   p50 us |   p99 us |")
	}
	fmt.Print("\n  |---------------|--------|----------|----------|----------|---------|")
	if withDist {
		fmt.Print("----------|----------|")
	}
	fmt.Println()

	for _, r := range sorted {
		fmt.Printf("  | %-13s | %6d | %8.3f | %8.3f | %8.3f | %6.2f%% |",
			r.Backend, r.Count, output.Micros(r.Average), output.Micros(r.Min), output.Micros(r.Max), r.HitRate())
		if withDist && r.Distribution != nil {
			fmt.Printf(" %8.3f | %8.3f |", output.Micros(r.Distribution.P50), output.Micros(r.Distribution.P99))
		}
		fmt.Println()
	}

	if line := output.WinnerLine(sorted); line != "" {
		fmt.Printf("\n  %s\n", line)
	}
	fmt.Println()
}

func printOverallRanking(rankings []output.Ranking) {
	if len(rankings) == 0 {
		return
	}

	printSuite("summary", "ranked voting across all workloads")

	for i := 0; i < len(rankings) && i < 3; i++ {
		r := rankings[i]
		fmt.Printf("  #%d  %s (%.0f points)\n", r.Rank, r.Name, r.Score)
	}
	fmt.Println()
}

// openBrowser opens the specified path in the default web browser.
func openBrowser(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path) //nolint:noctx // trusted command, fire-and-forget
	case "linux":
		cmd = exec.Command("xdg-open", path) //nolint:noctx // trusted command, fire-and-forget
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", path) //nolint:noctx // trusted command, fire-and-forget
	default:
		return errors.New("unsupported platform: " + runtime.GOOS)
	}
	return cmd.Start()
}
