package eventloop

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type used throughout this package. It is
// a plain type alias for a logiface Logger bound to stumpy's JSON event
// type, so callers can build their own with stumpy.L (or any other
// logiface-compatible facade) and pass it in via WithLogger/WithGroupLogger.
type Logger = *logiface.Logger[*stumpy.Event]

var (
	defaultLoggerValue atomic.Pointer[logiface.Logger[*stumpy.Event]]
	defaultLoggerOnce  sync.Once
)

// defaultLogger returns the package-level default Logger, lazily
// constructing a stumpy-backed one (writing newline-delimited JSON to
// os.Stderr, stumpy's own default) on first use.
func defaultLogger() Logger {
	defaultLoggerOnce.Do(func() {
		defaultLoggerValue.Store(stumpy.L.New())
	})
	return defaultLoggerValue.Load()
}

// SetDefaultLogger replaces the package-level default Logger used by any
// EventLoop or EventLoopGroup constructed without an explicit
// WithLogger/WithGroupLogger option. A nil logger is ignored.
func SetDefaultLogger(logger Logger) {
	if logger == nil {
		return
	}
	defaultLoggerOnce.Do(func() {})
	defaultLoggerValue.Store(logger)
}
