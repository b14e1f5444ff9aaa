package benchmark

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tstromberg/cachebench/internal/fetch"
	"github.com/tstromberg/cachebench/internal/workload"
)

const payload = `{"data":[{"id":1,"name":"otter"},{"id":2,"name":"theine"}]}`

func TestAPICacheProxy(t *testing.T) {
	for _, compress := range []bool{false, true} {
		b := openLocal(t, "lru")
		f := &fakeFetcher{body: []byte(payload)}
		spec := workload.Spec{Name: workload.APIProxy, N: 25, Path: "https://api.example.com/v1/things", Compress: compress}

		red := NewReducer("api-proxy", b.Name(), false, spec.N)
		require.NoError(t, APICacheProxy(context.Background(), b, f, spec, wall, red.Add))
		res, err := red.Result()
		require.NoError(t, err)
		require.Equal(t, 25, res.Count)
		require.Equal(t, 1, res.Misses)
		require.Equal(t, 24, res.Hits)
		require.Equal(t, int64(1), f.calls.Load(), "only the first lookup reaches upstream")

		stored, found, err := b.Get(context.Background(), spec.Path)
		require.NoError(t, err)
		require.True(t, found)
		if compress {
			require.NotEqual(t, payload, stored)
		} else {
			require.Equal(t, payload, stored)
		}
	}
}

func TestAPICacheProxyUpstreamError(t *testing.T) {
	b := openLocal(t, "lru")
	f := &fakeFetcher{err: &fetch.UpstreamError{URL: "u", StatusCode: 503}}
	spec := workload.Spec{Name: workload.APIProxy, N: 3, Path: "u"}
	err := APICacheProxy(context.Background(), b, f, spec, wall, func(Sample) {})
	var ue *fetch.UpstreamError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, 503, ue.StatusCode)
}

func TestAPICacheProxyBadPayload(t *testing.T) {
	b := openLocal(t, "lru")
	f := &fakeFetcher{body: []byte("<html>")}
	spec := workload.Spec{Name: workload.APIProxy, N: 1, Path: "u"}
	require.Error(t, APICacheProxy(context.Background(), b, f, spec, wall, func(Sample) {}))
	_, found, err := b.Get(context.Background(), "u")
	require.NoError(t, err)
	require.False(t, found)
}

func TestAPIDirect(t *testing.T) {
	f := &fakeFetcher{body: []byte(payload)}
	emit, got := collect()
	require.NoError(t, APIDirect(context.Background(), f, workload.Spec{Name: workload.APIDirect, N: 7, Path: "u"}, wall, emit))
	require.Len(t, *got, 7)
	require.Equal(t, int64(7), f.calls.Load())
}

func TestAPIRequiresFetcher(t *testing.T) {
	b := openLocal(t, "lru")
	spec := workload.Spec{Name: workload.APIProxy, N: 1, Path: "u"}
	require.ErrorIs(t, APICacheProxy(context.Background(), b, nil, spec, wall, func(Sample) {}), errNoFetcher)
	spec.Name = workload.APIDirect
	require.ErrorIs(t, APIDirect(context.Background(), nil, spec, wall, func(Sample) {}), errNoFetcher)
}
