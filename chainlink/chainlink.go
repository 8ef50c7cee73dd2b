// Package chainlink models the caller chain that continuations form, the
// Go-idiomatic replacement for the original's heterogeneous linked list of
// a polymorphic continuation base walked via dynamic_cast. Rather than
// classify nodes at walk time, every node in the chain implements Link,
// and nodes that also gate their body with a LockSet additionally
// implement Serialized - callers type-assert instead of downcasting.
package chainlink

import "github.com/latentPrion/libspinscale/qutex"

// Link is one node in a continuation's caller chain. The chain root's
// Caller returns nil.
type Link interface {
	// Caller returns the continuation that constructed this one, or nil
	// at the root of the chain.
	Caller() Link

	// Err returns a user-facing error stored on this link, if any.
	// Mirrors the original's exception-carrying completion path: an
	// error recorded here is meant to be inspected and re-raised by the
	// caller's reactor the next time it looks at the chain, rather than
	// propagated synchronously.
	Err() error

	// SetErr records a user-facing error on this link.
	SetErr(err error)
}

// Serialized is a Link whose body execution is gated by a LockSet. Every
// SerializedContinuation implements this; plain (non-serialized)
// continuations implement only Link.
type Serialized interface {
	Link

	// Contains reports whether q is a member of this link's LockSet,
	// regardless of whether it has been released early. Used by the
	// deadlock detector to ask "do you hold this qutex".
	Contains(q *qutex.Qutex) bool

	// Qutexes returns every qutex in this link's LockSet, in
	// declaration order. Used by the gridlock heuristic to build a
	// continuation's held-qutex history.
	Qutexes() []*qutex.Qutex
}

// AsSerialized type-asserts link to Serialized, returning ok=false for a
// plain Link or a nil link. This is the single point where this module
// performs the "is this node serialized" classification the original did
// via dynamic_cast.
func AsSerialized(link Link) (Serialized, bool) {
	if link == nil {
		return nil, false
	}
	s, ok := link.(Serialized)
	return s, ok
}

// Walk calls visit for link and every ancestor reachable via Caller,
// stopping if visit returns false or the chain root (nil Caller) is
// reached.
func Walk(link Link, visit func(Link) bool) {
	for l := link; l != nil; l = l.Caller() {
		if !visit(l) {
			return
		}
	}
}
