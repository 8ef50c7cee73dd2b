// Package lockvoker implements Lockvoker, the re-postable task object
// representing one continuation's attempt to acquire its LockSet and run
// its body. A Lockvoker exists once per continuation; copies of it placed
// into several qutex queues all compare equal by the parent
// continuation's identity, never by the Lockvoker record's own address.
package lockvoker

import (
	"sync/atomic"

	"github.com/latentPrion/libspinscale/chainlink"
	"github.com/latentPrion/libspinscale/reactor"
)

// Lockvoker is a qutex.Waiter whose Awaken posts a single attempt closure
// back onto its target reactor. The attempt closure is supplied by the
// owning continuation at construction time and is responsible for calling
// LockSet.TryAcquireOrBackoff, running the detectors on failure past the
// deadline, and invoking the continuation body on success - this is the
// "try-acquire-then-run-body" step spec describes as the Lockvoker's own
// execution, restructured here as a closure so this package never needs
// to import the continuation package that constructs it.
type Lockvoker struct {
	parent  chainlink.Link
	target  reactor.Reactor
	attempt func()

	isAwakeOrBeingAwakened atomic.Bool
}

// New builds a Lockvoker for parent, targeting target, running attempt
// each time it is dequeued by the reactor.
func New(parent chainlink.Link, target reactor.Reactor, attempt func()) *Lockvoker {
	return &Lockvoker{parent: parent, target: target, attempt: attempt}
}

// Identity returns the parent continuation's identity. Two Lockvoker
// values constructed from the same parent, even distinct instances,
// compare equal through this.
func (lv *Lockvoker) Identity() any { return lv.parent }

// Awaken implements the wake protocol: it exchanges
// isAwakeOrBeingAwakened to true, and posts the attempt closure to the
// target reactor unless the flag was already true and force is false.
// Non-forced wakes therefore collapse into at most one posted reactor
// task per attempt cycle. Qutex.Release and Qutex.Backoff wake with
// force set, so each of their wakes posts a task.
func (lv *Lockvoker) Awaken(force bool) {
	wasAwake := lv.isAwakeOrBeingAwakened.Swap(true)
	if wasAwake && !force {
		return
	}
	lv.target.Post(reactor.Trace(lv.attempt))
}

// ResetAwake clears isAwakeOrBeingAwakened, allowing a future Awaken to
// re-post. Called by the owning continuation's attempt closure after a
// failed acquisition, before it returns control to the reactor.
func (lv *Lockvoker) ResetAwake() {
	lv.isAwakeOrBeingAwakened.Store(false)
}

// Post unconditionally posts the attempt closure, used for the
// construction-time "first wake" that has no prior awake state to
// collapse against.
func (lv *Lockvoker) Post() {
	lv.isAwakeOrBeingAwakened.Store(true)
	lv.target.Post(reactor.Trace(lv.attempt))
}
