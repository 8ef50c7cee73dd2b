// Package gridlock implements the two-stage circular-dependency detector:
// a fast heuristic that may false-positive, gating a complete
// DFS-cycle-detection pass over a dependency graph built from the
// process-wide acquisition history tracker.
package gridlock

import (
	"strings"

	"github.com/latentPrion/libspinscale/chainlink"
	"github.com/latentPrion/libspinscale/debugcfg"
	"github.com/latentPrion/libspinscale/depgraph"
	"github.com/latentPrion/libspinscale/qutex"
	"github.com/latentPrion/libspinscale/tracker"
)

// HeldQutexHistory walks self's caller chain and returns every qutex held
// by a Serialized ancestor, in the order original_source builds it:
// starting from self's immediate caller, prepending each ancestor's
// qutexes so the list reads outermost-held-first.
func HeldQutexHistory(self chainlink.Link) []*qutex.Qutex {
	var held []*qutex.Qutex
	chainlink.Walk(self.Caller(), func(l chainlink.Link) bool {
		if s, ok := chainlink.AsSerialized(l); ok {
			held = append(s.Qutexes(), held...)
		}
		return true
	})
	return held
}

// Report is the outcome of a Check call.
type Report struct {
	HeuristicHit bool
	Confirmed    bool
	Cycles       [][]depgraph.Edge[chainlink.Link]
}

// Check runs both detection stages for self, which has just failed to
// acquire wanted and whose elapsed-since-construction time has exceeded
// the configured threshold. It records self in t, then checks whether
// any other tracked entry already holds wanted (stage 1); if so it builds
// a dependency graph from t and runs DFS cycle detection (stage 2),
// logging a diagnostic with a stable leading token for each stage that
// fires.
func Check(t *tracker.Tracker, self chainlink.Serialized, wanted *qutex.Qutex) Report {
	held := HeldQutexHistory(self)
	t.AddIfNotExists(self, wanted, held)

	if !t.HeuristicCheck(self, wanted) {
		return Report{}
	}

	debugcfg.Logger().Warn().
		Str("wantedQutex", wanted.Name()).
		Msg("GRIDLOCK DETECTED (heuristic): continuation is waiting on a qutex already held by another timed-out continuation")

	graph := t.GenerateGraph()
	cycles := graph.FindCycles()
	if len(cycles) == 0 {
		return Report{HeuristicHit: true}
	}

	debugcfg.Logger().Error().
		Str("wantedQutex", wanted.Name()).
		Int("cycleCount", len(cycles)).
		Str("cycles", describeCycles(cycles)).
		Msg("CIRCULAR DEPENDENCIES DETECTED: confirmed gridlock among timed-out continuations")

	return Report{HeuristicHit: true, Confirmed: true, Cycles: cycles}
}

// Retract removes self from t after it has succeeded in acquiring its
// LockSet, logging the false-positive diagnostic. It does nothing if self
// is not tracked; a tracked self is removed whether or not the heuristic
// stage fired for it.
func Retract(t *tracker.Tracker, self chainlink.Link) {
	if !t.Contains(self) {
		return
	}
	t.Remove(self)
	debugcfg.Logger().Info().Msg("gridlock false positive retracted: continuation acquired its lockset after being tracked as timed out")
}

func describeCycles(cycles [][]depgraph.Edge[chainlink.Link]) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("; ")
		}
		for j, e := range cycle {
			if j > 0 {
				b.WriteString(" -> ")
			}
			b.WriteString(e.Label)
		}
	}
	return b.String()
}
