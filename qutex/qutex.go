// Package qutex implements the queue-based mutual-exclusion primitive this
// module is built around: a mutex-like object with an internal FIFO of
// waiters and a probabilistic positional acquisition rule that guarantees
// forward progress without ever blocking a physical thread.
package qutex

import (
	"container/list"
	"fmt"

	"github.com/latentPrion/libspinscale/debugcfg"
	"github.com/latentPrion/libspinscale/spinlock"
)

// Waiter is anything that can sit in a Qutex's waiter queue. Equality
// between two Waiters is defined by Identity, not by the Waiter value
// itself: a single logical waiter (one continuation) is placed into
// several qutex queues as separate copies, and all of those copies must
// compare equal.
type Waiter interface {
	// Identity returns a value equal across every copy of this waiter,
	// and unequal to any other waiter's identity. It must be comparable
	// with ==.
	Identity() any

	// Awaken is called when this waiter becomes the front of a queue it
	// is registered in, or when the qutex it was failing to acquire
	// becomes free. force mirrors the original awaken(force) contract:
	// true bypasses the already-awake collapse.
	Awaken(force bool)
}

func identityEqual(a, b Waiter) bool {
	return a.Identity() == b.Identity()
}

// Handle identifies a waiter's slot in a Qutex's queue. It remains valid
// until explicitly unregistered, even if the queue is reordered by a
// Backoff call.
type Handle struct {
	elem *list.Element
}

// Qutex is a queue-based mutex. The zero value is not usable; construct
// with New.
type Qutex struct {
	mu    spinlock.Lock
	name  string
	queue list.List
	owned bool
	owner Waiter // debug only, nil unless debugcfg.DebugLocksEnabled
}

// New creates a named Qutex. The name is diagnostic only, and is the
// human-readable identity that appears in deadlock/gridlock reports;
// production code need not pick a meaningful one.
func New(name string) *Qutex {
	q := &Qutex{name: name}
	q.queue.Init()
	return q
}

// Name returns the qutex's diagnostic name.
func (q *Qutex) Name() string { return q.name }

// Owner returns the waiter currently holding this qutex, or nil if it is
// free or debug ownership tracking is disabled. Debug only, per spec
// §9's "(debug) a shared handle to the current owner".
func (q *Qutex) Owner() Waiter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.owner
}

// RegisterInQueue appends waiter to the tail of the FIFO and returns a
// stable handle to its slot. Always succeeds.
func (q *Qutex) RegisterInQueue(waiter Waiter) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.queue.PushBack(waiter)
	return Handle{elem: e}
}

// UnregisterFromQueue erases a waiter's slot. Required after a successful
// acquisition, once the waiter no longer needs a queue position.
// Unregistering a handle that is not (or no longer) in this queue is a
// programming error.
func (q *Qutex) UnregisterFromQueue(h Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if h.elem == nil || h.elem.Value == nil {
		panic("qutex: unregister of an already-unregistered handle")
	}
	q.queue.Remove(h.elem)
	h.elem.Value = nil
}

// TryAcquire implements the positional acquisition rule. nRequiredLocks is
// the size of the caller's LockSet. Calling TryAcquire on an empty queue
// is a programming error: tryingWaiter must already be registered.
func (q *Qutex) TryAcquire(tryingWaiter Waiter, nRequiredLocks int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	queueLen := q.queue.Len()
	if queueLen == 0 {
		panic("qutex: try_acquire called on an empty queue")
	}
	if q.owned {
		return false
	}

	rearWindow := queueLen / nRequiredLocks

	if queueLen == 1 || rearWindow < 1 {
		q.acquireLocked(tryingWaiter)
		return true
	}

	if nRequiredLocks == 1 {
		front := q.queue.Front().Value.(Waiter)
		if !identityEqual(front, tryingWaiter) {
			return false
		}
		q.acquireLocked(tryingWaiter)
		return true
	}

	e := q.queue.Back()
	for i := 0; i < rearWindow && e != nil; i++ {
		if identityEqual(e.Value.(Waiter), tryingWaiter) {
			return false
		}
		e = e.Prev()
	}
	q.acquireLocked(tryingWaiter)
	return true
}

func (q *Qutex) acquireLocked(w Waiter) {
	q.owned = true
	if debugcfg.DebugLocksEnabled() {
		q.owner = w
	}
}

// Backoff re-orders the queue after a failed acquisition attempt and wakes
// the new front. failedWaiter must be the same waiter most recently passed
// to TryAcquire. The wake happens after the spinlock is released, mirroring
// the original's lock.release() before front.awaken(), so a slow Awaken
// (e.g. a reactor whose post blocks) never extends this critical section.
func (q *Qutex) Backoff(failedWaiter Waiter, nRequiredLocks int) {
	q.mu.Lock()

	queueLen := q.queue.Len()
	if queueLen == 0 {
		q.mu.Unlock()
		panic("qutex: backoff called on an empty queue")
	}

	frontElem := q.queue.Front()
	isFront := identityEqual(frontElem.Value.(Waiter), failedWaiter)

	if isFront {
		if queueLen == 1 {
			if nRequiredLocks == 1 {
				q.mu.Unlock()
				panic(fmt.Sprintf("qutex %q: backoff on a lone size-1 waiter - its try_acquire must have succeeded", q.name))
			}
			// Q==1 with S>1 always succeeds under the positional rule
			// (rule 2), so there is nothing to rotate here.
		} else {
			pos := nRequiredLocks
			if pos > queueLen {
				pos = queueLen
			}
			moveElementToPosition(&q.queue, frontElem, pos)
		}
	}

	q.owned = false
	q.owner = nil

	var toWake Waiter
	if newFront := q.queue.Front(); newFront != nil {
		nw := newFront.Value.(Waiter)
		if !(queueLen == 1 && identityEqual(nw, failedWaiter)) {
			toWake = nw
		}
	}

	q.mu.Unlock()

	if toWake != nil {
		toWake.Awaken(true)
	}
}

// moveElementToPosition moves e, currently at the front of l, to 1-indexed
// position pos (pos==1 is a no-op, pos==l.Len() moves it to the back).
// Other elements' *list.Element handles remain valid.
func moveElementToPosition(l *list.List, e *list.Element, pos int) {
	cur := e
	for i := 1; i < pos; i++ {
		cur = cur.Next()
	}
	if cur != e {
		l.MoveAfter(e, cur)
	}
}

// Release marks the qutex unowned and wakes the current queue front, if
// any. Release must be called only on an owned qutex. As in Backoff, the
// wake happens after the spinlock is released, keeping the critical
// section bounded regardless of how long Awaken takes.
func (q *Qutex) Release() {
	q.mu.Lock()

	if !q.owned {
		q.mu.Unlock()
		panic(fmt.Sprintf("qutex %q: release of an unowned qutex", q.name))
	}
	q.owned = false
	q.owner = nil

	var toWake Waiter
	if front := q.queue.Front(); front != nil {
		toWake = front.Value.(Waiter)
	}

	q.mu.Unlock()

	if toWake != nil {
		toWake.Awaken(true)
	}
}

// QueueLen reports the current waiter count. Intended for tests and
// diagnostics, not for acquisition logic (which already holds its own
// count internally at the moment it matters).
func (q *Qutex) QueueLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}

// IsOwned reports whether the qutex is currently held. Intended for tests
// and diagnostics.
func (q *Qutex) IsOwned() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.owned
}
