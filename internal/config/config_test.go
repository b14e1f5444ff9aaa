package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/tstromberg/cachebench/internal/cache"
	"github.com/tstromberg/cachebench/internal/logging"
	"github.com/tstromberg/cachebench/internal/workload"
)

func newContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range Flags() {
		f.Apply(set)
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestDefaults(t *testing.T) {
	cfg, err := NewConfig(newContext(t))
	require.NoError(t, err)
	require.Equal(t, logging.Local, cfg.Environment)
	require.Equal(t, 10000, cfg.N)
	require.Equal(t, "cpu", cfg.Clock)

	for _, b := range cfg.Backends {
		require.False(t, cache.IsRemote(b.Kind), b.Kind)
	}
	require.NotEmpty(t, cfg.Backends)

	// No api url: the api workloads are left out.
	for _, s := range cfg.Specs() {
		require.NotEqual(t, workload.APIProxy, s.Name)
		require.NotEqual(t, workload.APIDirect, s.Name)
	}
}

func TestFlags(t *testing.T) {
	cfg, err := NewConfig(newContext(t,
		"--env", "production",
		"--workloads", "set, get-hit,ratio-miss",
		"--n", "500",
		"--ratio", "0.25",
		"--backends", "redis,memcached,otter",
		"--redis-addr", "cache-1:6380",
		"--memcached-addrs", "mc-1:11211,mc-2:11211",
		"--password", "hunter2",
		"--max-memory-mb", "100",
		"--eviction-policy", "allkeys-lru",
		"--api-url", "https://api.example.com/v1/prices",
		"--api-params", "currency=USD,limit=5",
		"--ttl", "1m",
	))
	require.NoError(t, err)
	require.Equal(t, logging.Production, cfg.Environment)

	specs := cfg.Specs()
	require.Len(t, specs, 3)
	require.Equal(t, workload.RatioMiss, specs[2].Name)
	require.InDelta(t, 0.25, specs[2].Ratio, 1e-9)
	require.Equal(t, 500, specs[0].N)
	require.Equal(t, time.Minute, specs[0].TTL)
	require.Equal(t, map[string]string{"currency": "USD", "limit": "5"}, specs[0].Params)

	require.Len(t, cfg.Backends, 3)
	require.Equal(t, []string{"cache-1:6380"}, cfg.Backends[0].Addrs)
	require.Equal(t, "hunter2", cfg.Backends[0].Password)
	require.Equal(t, []string{"mc-1:11211", "mc-2:11211"}, cfg.Backends[1].Addrs)
	require.Empty(t, cfg.Backends[1].Password)

	opts := cfg.BackendOptions(zap.NewNop())
	require.Equal(t, int64(100), opts[2].Profile.MaxMemoryMB)
	require.Equal(t, "allkeys-lru", opts[2].Profile.EvictionPolicy)
}

func TestFileWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
n: 2000
ratio: 0.9
workloads: [get-hit, factorial]
timeout: 2s
profile:
  max_memory_mb: 64
backends:
  - name: redis-lfu
    kind: redis
    addrs: [localhost:6379]
    profile:
      max_memory_mb: 100
      eviction_policy: allkeys-lfu
      samples: 10
  - name: small-lru
    kind: lru
    capacity: 128
output:
  json: out/results.json
`), 0o600))

	cfg, err := NewConfig(newContext(t, "--config", path, "--n", "300"))
	require.NoError(t, err)
	require.Equal(t, 300, cfg.N, "flag overrides file")
	require.InDelta(t, 0.9, cfg.Ratio, 1e-9)
	require.Equal(t, 2*time.Second, cfg.Timeout)
	require.Equal(t, "out/results.json", cfg.Output.JSON)
	require.Len(t, cfg.Specs(), 2)

	opts := cfg.BackendOptions(zap.NewNop())
	require.Len(t, opts, 2)
	require.Equal(t, cache.Profile{MaxMemoryMB: 100, EvictionPolicy: "allkeys-lfu", Samples: 10}, opts[0].Profile)
	require.Equal(t, cache.Profile{MaxMemoryMB: 64}, opts[1].Profile, "global profile fills in")
	require.Equal(t, 128, opts[1].Capacity)
	require.Equal(t, 2*time.Second, opts[1].Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown workload", []string{"--workloads", "get-everything"}},
		{"unknown backend", []string{"--backends", "mongodb"}},
		{"bad ratio", []string{"--ratio", "2"}},
		{"zero n", []string{"--n", "0"}},
		{"bad params", []string{"--api-params", "novalue"}},
		{"api workload without url", []string{"--workloads", "api-proxy"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(newContext(t, tc.args...))
			require.Error(t, err)
		})
	}
}

func TestDuplicateBackendNames(t *testing.T) {
	cfg := Default()
	cfg.Backends = []BackendConfig{{Kind: "lru"}, {Name: "lru", Kind: "lru"}}
	require.Error(t, cfg.Validate())
}
