// Package config assembles run configuration from flags and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tstromberg/cachebench/internal/cache"
	"github.com/tstromberg/cachebench/internal/logging"
	"github.com/tstromberg/cachebench/internal/workload"
)

// BackendConfig describes one backend to benchmark.
type BackendConfig struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	Addrs    []string      `yaml:"addrs"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Capacity int           `yaml:"capacity"`
	Profile  cache.Profile `yaml:"profile"`
}

// APIConfig addresses the upstream used by the API workloads.
type APIConfig struct {
	URL      string            `yaml:"url"`
	Params   map[string]string `yaml:"params"`
	Timeout  time.Duration     `yaml:"timeout"`
	Compress bool              `yaml:"compress"`
}

// OutputConfig lists report files to write. Empty paths are skipped.
type OutputConfig struct {
	JSON     string `yaml:"json"`
	Markdown string `yaml:"markdown"`
	HTML     string `yaml:"html"`
}

// Config ... Application level configuration
type Config struct {
	Environment logging.Env `yaml:"env"`

	Workloads []string      `yaml:"workloads"`
	N         int           `yaml:"n"`
	Ratio     float64       `yaml:"ratio"`
	Amount    int64         `yaml:"amount"`
	Theta     float64       `yaml:"theta"`
	Seed      uint64        `yaml:"seed"`
	TTL       time.Duration `yaml:"ttl"`

	Clock       string `yaml:"clock"`
	Percentiles bool   `yaml:"percentiles"`

	// Timeout bounds connects and calls to network backends.
	Timeout time.Duration `yaml:"timeout"`
	// Profile applies to every backend without its own.
	Profile  cache.Profile   `yaml:"profile"`
	Backends []BackendConfig `yaml:"backends"`

	API    APIConfig    `yaml:"api"`
	Output OutputConfig `yaml:"output"`
}

// Default returns the configuration used when nothing is specified.
func Default() *Config {
	return &Config{
		Environment: logging.Local,
		N:           10000,
		Ratio:       0.5,
		Amount:      1,
		Seed:        42,
		Clock:       "cpu",
		Timeout:     5 * time.Second,
		API:         APIConfig{Timeout: 10 * time.Second},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Flags returns the command line flags NewConfig reads.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "env", Value: string(logging.Local), Usage: "Set the application env (local, development, production)"},
		&cli.StringFlag{Name: "config", Usage: "YAML config file; flags override its values"},
		// workloads
		&cli.StringFlag{Name: "workloads", Usage: "Comma-separated workloads (default: all that apply)"},
		&cli.IntFlag{Name: "n", Value: 10000, Usage: "Key-space size and operations per workload"},
		&cli.Float64Flag{Name: "ratio", Value: 0.5, Usage: "Expected hit ratio for ratio-miss, in (0,1]"},
		&cli.Int64Flag{Name: "amount", Value: 1, Usage: "Increment delta"},
		&cli.Float64Flag{Name: "theta", Value: 0.99, Usage: "Zipf skew, in (0,1)"},
		&cli.Uint64Flag{Name: "seed", Value: 42, Usage: "Seed for probabilistic key sequences"},
		&cli.DurationFlag{Name: "ttl", Usage: "Expiry applied to every write (0 = none)"},
		&cli.StringFlag{Name: "clock", Value: "cpu", Usage: "Timing source: cpu or wall"},
		&cli.BoolFlag{Name: "percentiles", Usage: "Report latency percentiles"},
		// backends
		&cli.StringFlag{Name: "backends", Usage: "Comma-separated backend kinds (default: all in-process)"},
		&cli.StringFlag{Name: "redis-addr", Value: "localhost:6379", Usage: "Redis address"},
		&cli.StringFlag{Name: "valkey-addr", Value: "localhost:6379", Usage: "Valkey address"},
		&cli.StringFlag{Name: "memcached-addrs", Value: "localhost:11211", Usage: "Comma-separated memcached addresses"},
		&cli.StringFlag{Name: "password", Usage: "Password for Redis/Valkey"},
		&cli.IntFlag{Name: "db", Usage: "Redis/Valkey database number"},
		&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "Network backend timeout"},
		&cli.IntFlag{Name: "capacity", Usage: "Entry capacity of in-process backends"},
		&cli.Int64Flag{Name: "max-memory-mb", Usage: "Memory ceiling applied to every backend"},
		&cli.StringFlag{Name: "eviction-policy", Usage: "Eviction policy applied where supported (e.g. allkeys-lru)"},
		&cli.IntFlag{Name: "samples", Usage: "Eviction sampling precision applied where supported"},
		// api
		&cli.StringFlag{Name: "api-url", Usage: "Upstream URL for api-proxy and api-direct"},
		&cli.StringFlag{Name: "api-params", Usage: "Query parameters as k=v,k=v"},
		&cli.DurationFlag{Name: "api-timeout", Value: 10 * time.Second, Usage: "Upstream request timeout"},
		&cli.BoolFlag{Name: "compress", Usage: "Store api-proxy payloads zstd-compressed"},
		// output
		&cli.StringFlag{Name: "json", Usage: "Write JSON results to this path"},
		&cli.StringFlag{Name: "markdown", Usage: "Write a Markdown report to this path"},
		&cli.StringFlag{Name: "html", Usage: "Write an HTML report to this path"},
	}
}

// NewConfig ... Initializer
func NewConfig(c *cli.Context) (*Config, error) {
	cfg := Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("env") || cfg.Environment == "" {
		cfg.Environment = logging.Env(c.String("env"))
	}
	if c.IsSet("workloads") {
		cfg.Workloads = splitList(c.String("workloads"))
	}
	if c.IsSet("n") {
		cfg.N = c.Int("n")
	}
	if c.IsSet("ratio") {
		cfg.Ratio = c.Float64("ratio")
	}
	if c.IsSet("amount") {
		cfg.Amount = c.Int64("amount")
	}
	if c.IsSet("theta") {
		cfg.Theta = c.Float64("theta")
	}
	if c.IsSet("seed") {
		cfg.Seed = c.Uint64("seed")
	}
	if c.IsSet("ttl") {
		cfg.TTL = c.Duration("ttl")
	}
	if c.IsSet("clock") {
		cfg.Clock = c.String("clock")
	}
	if c.IsSet("percentiles") {
		cfg.Percentiles = c.Bool("percentiles")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("max-memory-mb") {
		cfg.Profile.MaxMemoryMB = c.Int64("max-memory-mb")
	}
	if c.IsSet("eviction-policy") {
		cfg.Profile.EvictionPolicy = c.String("eviction-policy")
	}
	if c.IsSet("samples") {
		cfg.Profile.Samples = c.Int("samples")
	}
	if c.IsSet("backends") || len(cfg.Backends) == 0 {
		cfg.Backends = backendsFromFlags(c)
	}

	if c.IsSet("api-url") {
		cfg.API.URL = c.String("api-url")
	}
	if c.IsSet("api-params") {
		params, err := parseParams(c.String("api-params"))
		if err != nil {
			return nil, err
		}
		cfg.API.Params = params
	}
	if c.IsSet("api-timeout") {
		cfg.API.Timeout = c.Duration("api-timeout")
	}
	if c.IsSet("compress") {
		cfg.API.Compress = c.Bool("compress")
	}
	if c.IsSet("json") {
		cfg.Output.JSON = c.String("json")
	}
	if c.IsSet("markdown") {
		cfg.Output.Markdown = c.String("markdown")
	}
	if c.IsSet("html") {
		cfg.Output.HTML = c.String("html")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func backendsFromFlags(c *cli.Context) []BackendConfig {
	kinds := splitList(c.String("backends"))
	if len(kinds) == 0 {
		for _, k := range cache.AvailableNames() {
			if !cache.IsRemote(k) {
				kinds = append(kinds, k)
			}
		}
	}
	out := make([]BackendConfig, 0, len(kinds))
	for _, k := range kinds {
		bc := BackendConfig{Name: k, Kind: k, Capacity: c.Int("capacity")}
		switch k {
		case "redis":
			bc.Addrs = []string{c.String("redis-addr")}
		case "valkey":
			bc.Addrs = []string{c.String("valkey-addr")}
		case "memcached":
			bc.Addrs = splitList(c.String("memcached-addrs"))
		}
		if cache.IsRemote(k) && k != "memcached" {
			bc.Password = c.String("password")
			bc.DB = c.Int("db")
		}
		out = append(out, bc)
	}
	return out
}

// Validate checks the configuration without touching any backend.
func (cfg *Config) Validate() error {
	var errs []error
	for _, w := range cfg.Workloads {
		if _, err := workload.ParseName(w); err != nil {
			errs = append(errs, err)
		}
	}
	known := map[string]bool{}
	for _, k := range cache.AvailableNames() {
		known[k] = true
	}
	seen := map[string]bool{}
	for _, b := range cfg.Backends {
		kind := b.Kind
		if kind == "" {
			kind = b.Name
		}
		if !known[kind] {
			errs = append(errs, fmt.Errorf("unknown backend kind %q", kind))
		}
		name := b.Name
		if name == "" {
			name = kind
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("duplicate backend name %q", name))
		}
		seen[name] = true
	}
	if len(cfg.Backends) == 0 {
		errs = append(errs, errors.New("no backends configured"))
	}
	for _, s := range cfg.Specs() {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

// Specs returns the workload specs to run, in suite order. Without an
// explicit list every workload runs; the API workloads need a URL.
func (cfg *Config) Specs() []workload.Spec {
	names := cfg.Workloads
	if len(names) == 0 {
		for _, n := range workload.Names() {
			if (n == workload.APIProxy || n == workload.APIDirect) && cfg.API.URL == "" {
				continue
			}
			names = append(names, string(n))
		}
	}
	specs := make([]workload.Spec, 0, len(names))
	for _, n := range names {
		specs = append(specs, workload.Spec{
			Name:     workload.Name(n),
			N:        cfg.N,
			Ratio:    cfg.Ratio,
			Amount:   cfg.Amount,
			Theta:    cfg.Theta,
			Seed:     cfg.Seed,
			TTL:      cfg.TTL,
			Path:     cfg.API.URL,
			Params:   cfg.API.Params,
			Compress: cfg.API.Compress,
		})
	}
	return specs
}

// BackendOptions returns cache.Open options for every configured backend.
func (cfg *Config) BackendOptions(logger *zap.Logger) []cache.Options {
	out := make([]cache.Options, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		p := b.Profile
		if p.IsZero() {
			p = cfg.Profile
		}
		out = append(out, cache.Options{
			Kind:     b.Kind,
			Name:     b.Name,
			Addrs:    b.Addrs,
			Password: b.Password,
			DB:       b.DB,
			Timeout:  cfg.Timeout,
			Capacity: b.Capacity,
			Profile:  p,
			Logger:   logger,
		})
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseParams(s string) (map[string]string, error) {
	params := map[string]string{}
	for _, kv := range splitList(s) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad api param %q (want k=v)", kv)
		}
		params[k] = v
	}
	return params, nil
}
