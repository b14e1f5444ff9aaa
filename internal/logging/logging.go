// Package logging holds the process-wide zap logger.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Env names the deployment environment the logger is configured for.
type Env string

const (
	Production  Env = "production"
	Development Env = "development"
	Local       Env = "local"
)

type ctxKey struct{}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// New builds the global logger for env. Production emits JSON at info level;
// everything else gets a colored console encoder at debug level.
func New(env Env) *zap.Logger {
	var cfg zap.Config
	if env == Production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	// Benchmark tables go to stdout; keep logs off it.
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewExample()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// NoContext returns the global logger.
func NoContext() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// WithLogger returns a child context carrying l.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithFields returns a child context whose logger carries fields.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return WithLogger(ctx, WithContext(ctx).With(fields...))
}

// WithContext returns the logger attached to ctx, or the global one.
func WithContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return NoContext()
}
