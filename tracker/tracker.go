// Package tracker implements the process-wide AcquisitionHistoryTracker: a
// registry of continuations that have timed out waiting for a qutex,
// together with the qutex they want and the qutexes they already hold.
// It is the data source for both stages of gridlock detection.
package tracker

import (
	"github.com/latentPrion/libspinscale/chainlink"
	"github.com/latentPrion/libspinscale/depgraph"
	"github.com/latentPrion/libspinscale/qutex"
	"github.com/latentPrion/libspinscale/spinlock"
)

// entry is one tracked continuation's state at the moment it was added.
type entry struct {
	wanted *qutex.Qutex
	held   []*qutex.Qutex
}

// Tracker is the acquisition history tracker. It deliberately uses a
// spinlock rather than a qutex to protect its own state, breaking what
// would otherwise be a circular dependency: the qutex acquisition path
// (a continuation's attempt, via gridlock) calls into the tracker on slow
// paths, so the tracker cannot itself be protected by a qutex.
type Tracker struct {
	mu      spinlock.Lock
	entries map[chainlink.Link]entry
}

var global *Tracker
var globalInit spinlock.Lock

// Global returns the process-wide tracker, creating it on first use. It
// is created lazily and never destroyed, matching the original's
// lifetime rule for this singleton.
func Global() *Tracker {
	globalInit.Lock()
	defer globalInit.Unlock()
	if global == nil {
		global = New()
	}
	return global
}

// New builds a standalone Tracker. Most callers want Global; New exists
// for tests that want an isolated instance.
func New() *Tracker {
	return &Tracker{entries: make(map[chainlink.Link]entry)}
}

// AddIfNotExists records link as waiting on wanted while already holding
// held, unless link is already tracked. Returns true if it was newly
// added.
func (t *Tracker) AddIfNotExists(link chainlink.Link, wanted *qutex.Qutex, held []*qutex.Qutex) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[link]; exists {
		return false
	}
	t.entries[link] = entry{wanted: wanted, held: held}
	return true
}

// Remove drops link from the tracker, used for false-positive retraction
// when a tracked continuation later succeeds at acquisition.
func (t *Tracker) Remove(link chainlink.Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, link)
}

// Contains reports whether link is currently tracked.
func (t *Tracker) Contains(link chainlink.Link) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[link]
	return ok
}

// HeuristicCheck reports whether any other tracked entry already holds
// wanted - the fast, possibly-false-positive stage 1 check. self is
// excluded from the scan.
func (t *Tracker) HeuristicCheck(self chainlink.Link, wanted *qutex.Qutex) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for link, e := range t.entries {
		if link == self {
			continue
		}
		for _, h := range e.held {
			if h == wanted {
				return true
			}
		}
	}
	return false
}

// GenerateGraph builds a DependencyGraph snapshot from the current
// tracker state: for every pair (A, B) of distinct entries, an edge A->B
// is added iff A's wanted qutex is in B's held list, labeled with that
// qutex's name.
func (t *Tracker) GenerateGraph() *depgraph.Graph[chainlink.Link] {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := depgraph.New[chainlink.Link]()
	for link := range t.entries {
		g.AddNode(link)
	}
	for a, ea := range t.entries {
		for b, eb := range t.entries {
			if a == b {
				continue
			}
			for _, h := range eb.held {
				if h == ea.wanted {
					g.AddEdge(a, b, ea.wanted.Name())
					break
				}
			}
		}
	}
	return g
}

// Len reports the number of tracked entries. Diagnostic/test use only.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
