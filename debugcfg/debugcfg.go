// Package debugcfg holds the run-time equivalents of the original build-time
// switches (ENABLE_DEBUG_LOCKS, DEBUG_QUTEX_DEADLOCK_TIMEOUT_MS,
// DEBUG_TRACE_CALLABLES), plus the shared diagnostic logger. Go has no
// preprocessor, so what used to gate compilation now gates a hot-path
// branch; every setting here is safe to flip at any time from any
// goroutine.
package debugcfg

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	debugLocksEnabled atomic.Bool
	traceCallables    atomic.Bool
	deadlockTimeout   atomic.Int64 // nanoseconds

	logger atomic.Pointer[zerolog.Logger]
)

func init() {
	deadlockTimeout.Store(int64(500 * time.Millisecond))
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).With().Timestamp().Logger()
	logger.Store(&l)
}

// Enable turns on ownership tracking, deadlock detection, and gridlock
// detection. Mirrors ENABLE_DEBUG_LOCKS.
func Enable() { debugLocksEnabled.Store(true) }

// Disable turns debug locking back off.
func Disable() { debugLocksEnabled.Store(false) }

// DebugLocksEnabled reports whether debug-build-only behavior is active.
func DebugLocksEnabled() bool { return debugLocksEnabled.Load() }

// SetTimeout sets the elapsed-since-construction threshold used by both the
// deadlock and gridlock heuristics. Mirrors DEBUG_QUTEX_DEADLOCK_TIMEOUT_MS.
func SetTimeout(d time.Duration) { deadlockTimeout.Store(int64(d)) }

// Timeout returns the currently configured threshold.
func Timeout() time.Duration { return time.Duration(deadlockTimeout.Load()) }

// SetTraceCallables toggles caller-site metadata wrapping of posted tasks.
// Mirrors DEBUG_TRACE_CALLABLES.
func SetTraceCallables(enabled bool) { traceCallables.Store(enabled) }

// TraceCallablesEnabled reports whether task tracing is active.
func TraceCallablesEnabled() bool { return traceCallables.Load() }

// SetLogger replaces the shared diagnostic logger. Intended for embedders
// that want diagnostics routed somewhere other than stderr.
func SetLogger(l zerolog.Logger) { logger.Store(&l) }

// Logger returns the shared diagnostic logger.
func Logger() *zerolog.Logger { return logger.Load() }

// SetOutput is a convenience for redirecting diagnostics without
// constructing a zerolog.Logger by hand; primarily used by tests that want
// to assert on diagnostic text.
func SetOutput(w io.Writer) {
	l := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).With().Timestamp().Logger()
	logger.Store(&l)
}
