// Package klog wraps zap the way the indexer's components expect to use it:
// one named, structured logger per module, obtained once at package init and
// held in a package-level variable.
package klog

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.Mutex
	base *zap.Logger
)

// Root returns the process-wide base logger, building it on first use from
// the LOG_LEVEL environment variable (default "info"), matching the
// indexer's info-default convention.
func Root() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if base != nil {
		return base
	}

	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		_ = level.Set(raw)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	base = logger
	return base
}

// Named returns a SugaredLogger scoped to the given module name, mirroring
// the teacher's log.NewModuleLogger(name) call shape.
func Named(name string) *zap.SugaredLogger {
	return Root().Named(name).Sugar()
}

// SetForTest replaces the base logger that Root returns. Only loggers
// obtained from Named after the call use it; package-level loggers built at
// init keep the previous base. Restoring is the caller's responsibility.
func SetForTest(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}
