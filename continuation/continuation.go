// Package continuation implements SerializedContinuation, the node that
// ties a LockSet, a Lockvoker, a caller-chain link, and a target reactor
// together into one unit of gated asynchronous work.
package continuation

import (
	"time"

	"github.com/latentPrion/libspinscale/chainlink"
	"github.com/latentPrion/libspinscale/deadlock"
	"github.com/latentPrion/libspinscale/debugcfg"
	"github.com/latentPrion/libspinscale/gridlock"
	"github.com/latentPrion/libspinscale/lockset"
	"github.com/latentPrion/libspinscale/lockvoker"
	"github.com/latentPrion/libspinscale/qutex"
	"github.com/latentPrion/libspinscale/reactor"
	"github.com/latentPrion/libspinscale/tracker"
)

// Body is the work a SerializedContinuation runs once every qutex in its
// LockSet has been acquired. It is handed the continuation itself so it
// can call ReleaseEarly or eventually Complete.
type Body func(cc *SerializedContinuation)

// SerializedContinuation is a node in the continuation chain, gated by a
// LockSet. It implements chainlink.Serialized.
type SerializedContinuation struct {
	caller    chainlink.Link
	target    reactor.Reactor
	lockSet   *lockset.LockSet
	lv        *lockvoker.Lockvoker
	body      Body
	originalCb func(error)

	createdAt time.Time // debug only
	err       error
	acquired  bool // set once the LockSet is acquired; later attempts are stale
}

// New constructs a SerializedContinuation targeting target, chained below
// caller (nil at the root of a chain), requiring qutexes (in acquire
// order), running body once acquired, and invoking originalCb with
// whatever error body eventually passes to Complete.
//
// Construction performs every step spec.md describes: it stashes the
// caller link, builds the LockSet, creates the Lockvoker, runs the
// same-chain deadlock check in debug builds, registers in every qutex's
// queue, and unconditionally posts itself to target - the "first wake".
func New(target reactor.Reactor, caller chainlink.Link, qutexes []*qutex.Qutex, body Body, originalCb func(error)) *SerializedContinuation {
	sc := &SerializedContinuation{
		caller:     caller,
		target:     target,
		lockSet:    lockset.New(qutexes),
		body:       body,
		originalCb: originalCb,
		createdAt:  time.Now(),
	}

	if caller != nil {
		deadlock.CheckOrPanic(caller, qutexes)
	}

	sc.lv = lockvoker.New(sc, target, sc.attempt)
	sc.lockSet.RegisterInQueues(sc.lv)
	sc.lv.Post()

	return sc
}

// Caller returns the continuation that constructed this one, or nil at
// the chain root.
func (sc *SerializedContinuation) Caller() chainlink.Link { return sc.caller }

// Err returns the user-facing error stored on this continuation, if any.
func (sc *SerializedContinuation) Err() error { return sc.err }

// SetErr records a user-facing error on this continuation.
func (sc *SerializedContinuation) SetErr(err error) { sc.err = err }

// Contains reports whether q is a member of this continuation's LockSet.
func (sc *SerializedContinuation) Contains(q *qutex.Qutex) bool {
	return sc.lockSet.Contains(q)
}

// Qutexes returns every qutex in this continuation's LockSet, in
// declaration order.
func (sc *SerializedContinuation) Qutexes() []*qutex.Qutex {
	return sc.lockSet.Qutexes()
}

// ReleaseEarly releases q before the body completes. q must be a member
// of this continuation's LockSet.
func (sc *SerializedContinuation) ReleaseEarly(q *qutex.Qutex) {
	sc.lockSet.ReleaseQutexEarly(q)
}

// Complete releases every qutex not already released early, records err,
// and invokes the original callback. This is call_original_cb from
// spec.md: the LockSet is always released before the caller's own
// callback path runs.
func (sc *SerializedContinuation) Complete(err error) {
	sc.lockSet.Release()
	sc.err = err
	if sc.originalCb != nil {
		sc.originalCb(err)
	}
}

// attempt is the Lockvoker's execution body: the closure posted to the
// target reactor every time this continuation is woken. It asserts it is
// running on sc.target's own goroutine before touching the LockSet, this
// continuation, or any qutex-gated user data - the run-time counterpart
// of spec.md's "assert current thread is the target reactor's thread",
// using Reactor.OnOwnGoroutine since Go has no portable thread-identity
// read to compare against a stashed "self reactor" TLS value.
func (sc *SerializedContinuation) attempt() {
	if !sc.target.OnOwnGoroutine() {
		panic("continuation: attempt invoked off its target reactor's owning goroutine")
	}
	// Forced wakes (Qutex.Release/Backoff) can post an attempt while an
	// earlier one is still pending; once that earlier one has acquired the
	// LockSet, the later ones have nothing left to do.
	if sc.acquired {
		return
	}

	elapsed := time.Since(sc.createdAt)
	likely := debugcfg.DebugLocksEnabled() && elapsed > debugcfg.Timeout()

	ok, firstFailed := sc.lockSet.TryAcquireOrBackoff(sc.lv)
	if !ok {
		sc.lv.ResetAwake()
		if !likely {
			return
		}
		gridlock.Check(tracker.Global(), sc, firstFailed)
		return
	}

	sc.acquired = true
	sc.lockSet.UnregisterFromQueues()
	if likely {
		gridlock.Retract(tracker.Global(), sc)
	}
	sc.body(sc)
}
