// Package deadlock implements the same-chain deadlock check run at
// SerializedContinuation construction time: does an ancestor in the
// caller chain already hold a qutex the new continuation is about to
// wait on.
package deadlock

import (
	"fmt"

	"github.com/latentPrion/libspinscale/chainlink"
	"github.com/latentPrion/libspinscale/debugcfg"
	"github.com/latentPrion/libspinscale/qutex"
)

// Check walks caller's chain, starting at caller itself, and stops at the
// nearest Serialized link that holds any of qutexes. It returns that link
// and the first qutex (from qutexes, in order) that it holds. ok is false
// if no link in the chain holds any of them.
func Check(caller chainlink.Link, qutexes []*qutex.Qutex) (q *qutex.Qutex, ancestor chainlink.Serialized, ok bool) {
	var found *qutex.Qutex
	var foundIn chainlink.Serialized

	chainlink.Walk(caller, func(l chainlink.Link) bool {
		ancestor, isSerialized := chainlink.AsSerialized(l)
		if !isSerialized {
			return true
		}
		for _, candidate := range qutexes {
			if ancestor.Contains(candidate) {
				found = candidate
				foundIn = ancestor
				return false
			}
		}
		return true
	})

	if found == nil {
		return nil, nil, false
	}
	return found, foundIn, true
}

// CheckOrPanic runs Check and, if debug locking is enabled and a deadlock
// is found, logs a diagnostic with the stable "Deadlock" token and panics
// - per the error taxonomy, a same-chain deadlock detected at
// construction is a programming error that must abort the process, never
// be caught in production.
func CheckOrPanic(caller chainlink.Link, qutexes []*qutex.Qutex) {
	if !debugcfg.DebugLocksEnabled() {
		return
	}
	q, _, found := Check(caller, qutexes)
	if !found {
		return
	}
	debugcfg.Logger().Error().Str("qutex", q.Name()).Msg("Deadlock: caller chain already holds a qutex this continuation requires")
	panic(fmt.Sprintf("deadlock: continuation construction requires qutex %q already held by an ancestor in its caller chain", q.Name()))
}
