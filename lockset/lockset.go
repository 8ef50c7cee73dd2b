// Package lockset implements LockSet, the ordered collection of qutexes a
// continuation must acquire atomically before running its body.
package lockset

import (
	"fmt"

	"github.com/latentPrion/libspinscale/qutex"
)

// usage tracks one qutex's registration state within a LockSet.
type usage struct {
	qutex         *qutex.Qutex
	handle        qutex.Handle
	releasedEarly bool
}

// LockSet is the set of qutexes a single continuation must acquire as a
// unit. A LockSet is single-owner (the parent continuation) and every
// method must be called from the owning reactor's thread; nothing here is
// internally synchronized.
type LockSet struct {
	usages             []usage
	allAcquired        bool
	registeredInQueues bool
}

// New builds a LockSet over qutexes in the given order. Order matters: it
// is the try-acquire order used by TryAcquireOrBackoff.
func New(qutexes []*qutex.Qutex) *LockSet {
	usages := make([]usage, len(qutexes))
	for i, q := range qutexes {
		usages[i].qutex = q
	}
	return &LockSet{usages: usages}
}

// Size returns the number of qutexes in the set - the "n_required_locks"
// that feeds the positional acquisition rule.
func (ls *LockSet) Size() int { return len(ls.usages) }

// Qutexes returns every qutex in the set, in declaration order. Used by
// the gridlock heuristic's held-qutex history walk.
func (ls *LockSet) Qutexes() []*qutex.Qutex {
	out := make([]*qutex.Qutex, len(ls.usages))
	for i, u := range ls.usages {
		out[i] = u.qutex
	}
	return out
}

// Contains reports whether q is a member of this LockSet.
func (ls *LockSet) Contains(q *qutex.Qutex) bool {
	for _, u := range ls.usages {
		if u.qutex == q {
			return true
		}
	}
	return false
}

// RegisterInQueues registers waiter into every qutex's queue and records
// the returned handles. Must be called exactly once, before any
// acquisition attempt.
func (ls *LockSet) RegisterInQueues(waiter qutex.Waiter) {
	for i := range ls.usages {
		ls.usages[i].handle = ls.usages[i].qutex.RegisterInQueue(waiter)
	}
	ls.registeredInQueues = true
}

// TryAcquireOrBackoff attempts to acquire every qutex in the set, in
// declaration order. If any fails, it backs off every qutex already
// acquired during this attempt (in reverse acquisition order) and returns
// false along with the qutex that failed. If every qutex is acquired, it
// marks the set fully acquired and returns true.
func (ls *LockSet) TryAcquireOrBackoff(waiter qutex.Waiter) (ok bool, firstFailedQutex *qutex.Qutex) {
	if !ls.registeredInQueues {
		panic("lockset: try_acquire_or_backoff called before register_in_queues")
	}

	n := len(ls.usages)
	acquired := 0
	for ; acquired < n; acquired++ {
		if !ls.usages[acquired].qutex.TryAcquire(waiter, n) {
			break
		}
	}

	if acquired == n {
		ls.allAcquired = true
		return true, nil
	}

	firstFailedQutex = ls.usages[acquired].qutex
	for i := acquired - 1; i >= 0; i-- {
		ls.usages[i].qutex.Backoff(waiter, n)
	}
	return false, firstFailedQutex
}

// UnregisterFromQueues erases every recorded handle from every qutex
// queue. Called once acquisition succeeds, to free queue slots for other
// waiters.
func (ls *LockSet) UnregisterFromQueues() {
	if !ls.registeredInQueues {
		panic("lockset: unregister_from_queues called before register_in_queues")
	}
	for i := range ls.usages {
		ls.usages[i].qutex.UnregisterFromQueue(ls.usages[i].handle)
	}
}

// Release releases every qutex that has not already been released early.
func (ls *LockSet) Release() {
	if !ls.registeredInQueues {
		panic("lockset: release called before register_in_queues")
	}
	for i := range ls.usages {
		if !ls.usages[i].releasedEarly {
			ls.usages[i].qutex.Release()
		}
	}
	ls.allAcquired = false
}

// ReleaseQutexEarly releases q before the continuation body completes,
// marking it so a later Release skips it. q must be a member of this set.
// Releasing a qutex that was already released early is a no-op.
func (ls *LockSet) ReleaseQutexEarly(q *qutex.Qutex) {
	if !ls.registeredInQueues {
		panic("lockset: release_qutex_early called before register_in_queues")
	}
	u := ls.usageFor(q)
	if u.releasedEarly {
		return
	}
	u.qutex.Release()
	u.releasedEarly = true
}

// usageFor returns the usage record for q, panicking if q is not a member
// of this set. Mirrors the original's getLockUsageDesc lookup.
func (ls *LockSet) usageFor(q *qutex.Qutex) *usage {
	for i := range ls.usages {
		if ls.usages[i].qutex == q {
			return &ls.usages[i]
		}
	}
	panic(fmt.Sprintf("lockset: qutex %q is not a member of this lockset", q.Name()))
}
