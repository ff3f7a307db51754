// Package logger provides the process-wide structured logger used by every
// engine package, mirroring the single package-level accessor the teacher's
// packages call as `logger.Logger()`.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once   sync.Once
	sugar  *zap.SugaredLogger
	base   *zap.Logger
	initMu sync.Mutex
)

// Logger returns the process-wide sugared logger, constructing it on first
// use with a production encoder config tuned for CLI output (ISO8601
// timestamps, no stack traces below error level).
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			l = zap.NewNop()
		}
		base = l
		sugar = l.Sugar()
	})
	return sugar
}

// SetLevel adjusts the minimum enabled level at runtime (used by the
// --verbose CLI flag).
func SetLevel(level string) error {
	initMu.Lock()
	defer initMu.Unlock()

	var zl zap.AtomicLevel
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	// Rebuild so the new level takes effect; cheap relative to the
	// servicing operations this logger instruments.
	cfg := zap.NewProductionConfig()
	cfg.Level = zl
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	base = l
	sugar = l.Sugar()
	return nil
}

// Sync flushes any buffered log entries; callers invoke this on process
// exit paths (clean install / update completion, fatal errors).
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
