// pkg/logger/logger.go

package logger

import (
	"strings"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log   = zap.NewNop()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// L returns the process-wide logger. It is a no-op logger until one of the
// Initialize functions has run.
func L() *zap.Logger {
	return log
}

// Sync flushes buffered log entries. Errors from syncing a terminal are ignored.
func Sync() error {
	err := log.Sync()
	if err != nil && (strings.Contains(err.Error(), "invalid argument") ||
		strings.Contains(err.Error(), "inappropriate ioctl")) {
		return nil
	}
	return err
}

// ParseLogLevel maps the operator-facing names (DEBUG, INFO, WARN, ERROR)
// onto zap levels. Unknown names fall back to INFO.
func ParseLogLevel(name string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLevel changes the level of every core built by this package.
func SetLevel(name string) error {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return cerr.Newf("unknown log level %q (expected DEBUG, INFO, WARN or ERROR)", name)
	}
	level.SetLevel(ParseLogLevel(name))
	return nil
}

// Level exposes the shared atomic level, mainly for tests.
func Level() zapcore.Level {
	return level.Level()
}
