// Package logger - process-wide zap logger for the detpost command.
package logger

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds a JSON production logger, or a console logger when development
// is set, at the given level ("debug", "info", "warn", "error").
//
// Arguments:
//   - level: The minimum level. Empty means info.
//   - development: Use the human readable console encoder.
//
// Returns:
//   - An error if the level is unknown or the logger cannot be built.
//
// @example
//
//	if err := logger.Init("debug", true); err != nil {
//	    panic(err)
//	}
//	defer logger.Sync()
func Init(level string, development bool) error {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return errors.Wrap(err, "log level")
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	Set(l)
	return nil
}

// InitProduction builds a JSON logger at info level.
func InitProduction() error {
	return Init("", false)
}

// InitDevelopment builds a console logger at debug level.
func InitDevelopment() error {
	return Init("", true)
}

// Set replaces the process logger and the zap globals. The previous logger
// is flushed.
func Set(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log returns the process logger, or zap's global logger before Init.
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// S returns the sugared process logger.
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync flushes buffered log entries.
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
