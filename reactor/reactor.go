// Package reactor defines the abstract single-threaded FIFO task queue
// that every continuation targets, plus one minimal concrete
// implementation sufficient to exercise the qutex/lockset/lockvoker
// protocol. The event loop itself - timers, I/O polling, thread lifetime -
// is an external collaborator and out of scope here; this package only
// supplies the contract (and a reference implementation of it).
package reactor

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/latentPrion/libspinscale/debugcfg"
)

// Reactor is the abstract single-threaded FIFO task queue owning exactly
// one native thread, described in full by spec §4.4. Every
// SerializedContinuation has a declared target Reactor; its body, and all
// Lockvoker executions attempting to acquire its LockSet, run only on
// that Reactor's owning goroutine.
type Reactor interface {
	// Post enqueues a task for later execution on the owning goroutine.
	// Non-blocking. Tasks execute strictly in enqueue order.
	Post(task func())

	// Stop causes the owning goroutine to exit its loop at the next
	// natural boundary.
	Stop()

	// IsStopped reports whether Stop has been called.
	IsStopped() bool

	// RunOne executes at most one pending task synchronously on the
	// calling goroutine, for use by asynchronous-bridge style helpers
	// that need to pump the loop without owning a dedicated goroutine.
	// It returns false if no task was pending.
	RunOne() bool

	// OnOwnGoroutine reports whether the calling goroutine is currently
	// executing a task dispatched by this Reactor. This is the run-time
	// stand-in for the original's "self reactor" thread-local: Go has no
	// portable goroutine-identity read, so rather than compare thread
	// IDs, implementations track "a task of mine is live right now" and
	// rely on Post being the only path into user code - true here unless
	// a caller invokes continuation internals directly instead of
	// through Post, which is exactly the programming error this exists
	// to catch.
	OnOwnGoroutine() bool
}

// Loop is a minimal concrete Reactor: a FIFO of tasks drained by a single
// owned goroutine. The FIFO holds at most 256 pending tasks; while it is
// full, Post blocks. It is sufficient to drive every continuation in this
// module; it is not a general-purpose event loop.
type Loop struct {
	tasks     chan func()
	stop      chan struct{}
	stopped   chan struct{}
	executing atomic.Bool
}

// NewLoop creates a Loop and starts its owning goroutine. Callers must
// call Stop to release it.
func NewLoop() *Loop {
	l := &Loop{
		tasks:   make(chan func(), 256),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.stop:
			return
		case task := <-l.tasks:
			l.executing.Store(true)
			task()
			l.executing.Store(false)
		}
	}
}

// OnOwnGoroutine reports whether a task posted to this Loop is currently
// executing. Loop drains its channel on a single dedicated goroutine and
// never runs two tasks concurrently, so the flag is true exactly while one
// of its tasks runs. The flag is shared: a call from any other goroutine
// during that window also returns true.
func (l *Loop) OnOwnGoroutine() bool { return l.executing.Load() }

// Post enqueues task for execution on the owning goroutine. It blocks
// while 256 tasks are already pending, and drops task once Stop has been
// called.
func (l *Loop) Post(task func()) {
	select {
	case l.tasks <- task:
	case <-l.stop:
	}
}

// Stop signals the owning goroutine to exit once it reaches a natural
// boundary (the next time it is not mid-task).
func (l *Loop) Stop() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
}

// IsStopped reports whether Stop has been called.
func (l *Loop) IsStopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// RunOne is not meaningful for a goroutine-owned Loop (tasks already run
// asynchronously on the owning goroutine); it always returns false. It
// exists to satisfy Reactor for embedders that drive a Loop-backed
// asynchronous bridge without a dedicated synchronous pump.
func (l *Loop) RunOne() bool { return false }

// Wait blocks until the owning goroutine has exited following Stop.
func (l *Loop) Wait() { <-l.stopped }

// Trace wraps task with caller-site metadata when DEBUG_TRACE_CALLABLES is
// enabled, for diagnosing stale-closure bugs in posted tasks. When
// tracing is disabled it returns task unchanged, at zero cost.
func Trace(task func()) func() {
	if !debugcfg.TraceCallablesEnabled() {
		return task
	}
	_, file, line, ok := runtime.Caller(1)
	site := "unknown"
	if ok {
		site = fmt.Sprintf("%s:%d", file, line)
	}
	return func() {
		defer func() {
			if r := recover(); r != nil {
				debugcfg.Logger().Error().Str("postedFrom", site).Interface("panic", r).Msg("task posted from traced site panicked")
				panic(r)
			}
		}()
		task()
	}
}
