// Package logger provides a small, centralized leveled logger used by the
// calculator, the batch runner and the REST server.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Output goes to stderr by default so it never mixes with CSV written to stdout.
// Configure can additionally route it to a size-rotated file.
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("solving %d quotes", n)
//	logger.Debugf("id=%s vol=%.6f iterations=%d", id, vol, iters)
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only failures.
	Info               // Info logs run-level progress.
	Debug              // Debug logs per-record outcomes.
	Trace              // Trace logs solver internals.
)

// Options configures where log output goes.
type Options struct {
	Verbosity  int    `mapstructure:"verbosity"`
	File       string `mapstructure:"file"`         // empty: stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // rotate after this size
	MaxBackups int    `mapstructure:"max_backups"`  // rotated files kept
	MaxAgeDays int    `mapstructure:"max_age_days"` // days rotated files are kept
	Compress   bool   `mapstructure:"compress"`
}

// current holds the active verbosity level; written once at startup,
// read from every worker goroutine.
var current atomic.Int32

func init() {
	current.Store(int32(Info))
	log.SetOutput(os.Stderr)

	// 2026/01/25 15:42:10 engine.go:87 [INFO]  solved 120 quotes
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// SetVerbosity sets the global logging verbosity, clamped to [Error, Trace].
func SetVerbosity(v int) {
	switch {
	case v < int(Error):
		v = int(Error)
	case v > int(Trace):
		v = int(Trace)
	}
	current.Store(int32(v))
}

// Verbosity returns the active level.
func Verbosity() Level {
	return Level(current.Load())
}

// Configure applies opts. When opts.File is set, output is written to both
// stderr and a lumberjack-rotated file; the returned closer releases the file.
func Configure(opts Options) (io.Closer, error) {
	SetVerbosity(opts.Verbosity)

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return rotating, nil
}

func logf(l Level, prefix, format string, args ...any) {
	if Verbosity() >= l {
		// depth 3 reports the caller of Errorf/Infof/... rather than this helper
		_ = log.Output(3, prefix+fmt.Sprintf(format, args...))
	}
}

// Errorf logs an error-level message.
func Errorf(format string, args ...any) {
	logf(Error, "[ERROR] ", format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	logf(Info, "[INFO]  ", format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	logf(Debug, "[DEBUG] ", format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	logf(Trace, "[TRACE] ", format, args...)
}

// Fatalf logs at error level regardless of verbosity and exits with status 1.
func Fatalf(format string, args ...any) {
	_ = log.Output(2, "[FATAL] "+fmt.Sprintf(format, args...))
	os.Exit(1)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
