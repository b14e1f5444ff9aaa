package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/tstromberg/cachebench/internal/cache"
	"github.com/tstromberg/cachebench/internal/fetch"
	"github.com/tstromberg/cachebench/internal/workload"
)

var errNoFetcher = errors.New("api workload requires a fetcher")

// payloadCodec turns upstream bodies into cache values and back.
type payloadCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newPayloadCodec(compress bool) (*payloadCodec, error) {
	if !compress {
		return &payloadCodec{}, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close() //nolint:errcheck,gosec // encoder unused
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &payloadCodec{enc: enc, dec: dec}, nil
}

func (c *payloadCodec) encode(body []byte) string {
	if c.enc == nil {
		return string(body)
	}
	return string(c.enc.EncodeAll(body, nil))
}

func (c *payloadCodec) decode(v string) ([]byte, error) {
	if c.dec == nil {
		return []byte(v), nil
	}
	return c.dec.DecodeAll([]byte(v), nil)
}

func (c *payloadCodec) close() {
	if c.enc != nil {
		c.enc.Close() //nolint:errcheck,gosec // nothing buffered with EncodeAll
	}
	if c.dec != nil {
		c.dec.Close()
	}
}

// decodePayload parses an upstream JSON body.
func decodePayload(body []byte) (any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

// APICacheProxy performs N read-through lookups of spec.Path. The first
// lookup misses and fills the cache; the rest are hits on the same key.
func APICacheProxy(ctx context.Context, b cache.Backend, f fetch.Fetcher, spec workload.Spec, smp Sampler, emit Emit) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if f == nil {
		return errNoFetcher
	}
	codec, err := newPayloadCodec(spec.Compress)
	if err != nil {
		return err
	}
	defer codec.close()

	for i := range spec.N {
		var found bool
		d, err := smp.Time(func() error {
			var err error
			found, err = readThrough(ctx, b, f, codec, spec)
			return err
		})
		if err != nil {
			return err
		}
		out := OutcomeMiss
		if found {
			out = OutcomeHit
		}
		emit(Sample{Index: i, Duration: d, Outcome: out})
	}
	return nil
}

func readThrough(ctx context.Context, b cache.Backend, f fetch.Fetcher, codec *payloadCodec, spec workload.Spec) (bool, error) {
	v, found, err := b.Get(ctx, spec.Path)
	if err != nil {
		return false, err
	}
	if found {
		body, err := codec.decode(v)
		if err != nil {
			return true, fmt.Errorf("decompress %s: %w", spec.Path, err)
		}
		_, err = decodePayload(body)
		return true, err
	}

	body, err := f.Fetch(ctx, spec.Path, spec.Params)
	if err != nil {
		return false, err
	}
	if _, err := decodePayload(body); err != nil {
		return false, err
	}
	return false, b.Set(ctx, spec.Path, codec.encode(body), spec.TTL)
}

// APIDirect fetches spec.Path N times without a cache, as a baseline for
// APICacheProxy.
func APIDirect(ctx context.Context, f fetch.Fetcher, spec workload.Spec, smp Sampler, emit Emit) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if f == nil {
		return errNoFetcher
	}
	for i := range spec.N {
		d, err := smp.Time(func() error {
			body, err := f.Fetch(ctx, spec.Path, spec.Params)
			if err != nil {
				return err
			}
			_, err = decodePayload(body)
			return err
		})
		if err != nil {
			return err
		}
		emit(Sample{Index: i, Duration: d})
	}
	return nil
}
