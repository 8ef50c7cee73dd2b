package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latentPrion/libspinscale/chainlink"
	"github.com/latentPrion/libspinscale/qutex"
)

type testLink struct{ name string }

func (testLink) Caller() chainlink.Link { return nil }
func (testLink) Err() error             { return nil }
func (testLink) SetErr(error)           {}

func TestAddIfNotExists_RejectsDuplicate(t *testing.T) {
	tr := New()
	a := qutex.New("A")
	link := testLink{"c1"}

	assert.True(t, tr.AddIfNotExists(link, a, nil))
	assert.False(t, tr.AddIfNotExists(link, a, nil))
	assert.Equal(t, 1, tr.Len())
}

func TestRemove(t *testing.T) {
	tr := New()
	a := qutex.New("A")
	link := testLink{"c1"}
	tr.AddIfNotExists(link, a, nil)

	tr.Remove(link)
	assert.False(t, tr.Contains(link))
	assert.Equal(t, 0, tr.Len())
}

func TestHeuristicCheck_FindsHolderExcludingSelf(t *testing.T) {
	tr := New()
	a := qutex.New("A")
	b := qutex.New("B")

	c1 := testLink{"c1"}
	c2 := testLink{"c2"}

	// c1 wants B, holds A. c2 wants A, holds B.
	tr.AddIfNotExists(c1, b, []*qutex.Qutex{a})
	tr.AddIfNotExists(c2, a, []*qutex.Qutex{b})

	assert.True(t, tr.HeuristicCheck(c1, b))
	assert.True(t, tr.HeuristicCheck(c2, a))
	assert.False(t, tr.HeuristicCheck(c1, a), "c1 does not want a qutex any entry other than itself holds")
}

func TestGenerateGraph_BuildsEdgeForMutualWait(t *testing.T) {
	tr := New()
	a := qutex.New("A")
	b := qutex.New("B")

	c1 := testLink{"c1"}
	c2 := testLink{"c2"}

	tr.AddIfNotExists(c1, b, []*qutex.Qutex{a})
	tr.AddIfNotExists(c2, a, []*qutex.Qutex{b})

	g := tr.GenerateGraph()
	require.True(t, g.HasCycles())
}

func TestGenerateGraph_NoEdgeWithoutOverlap(t *testing.T) {
	tr := New()
	a := qutex.New("A")
	b := qutex.New("B")
	c := qutex.New("C")

	c1 := testLink{"c1"}
	c2 := testLink{"c2"}

	tr.AddIfNotExists(c1, c, []*qutex.Qutex{a})
	tr.AddIfNotExists(c2, a, []*qutex.Qutex{b})

	g := tr.GenerateGraph()
	assert.False(t, g.HasCycles())
}

func TestGlobal_IsLazyAndSingleton(t *testing.T) {
	g1 := Global()
	g2 := Global()
	assert.Same(t, g1, g2)
}
