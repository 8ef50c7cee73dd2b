package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCycles_NoCycle(t *testing.T) {
	g := New[string]()
	g.AddEdge("A", "B", "x")
	g.AddEdge("B", "C", "y")
	assert.False(t, g.HasCycles())
}

func TestHasCycles_DirectCycle(t *testing.T) {
	g := New[string]()
	g.AddEdge("A", "B", "x")
	g.AddEdge("B", "A", "y")
	assert.True(t, g.HasCycles())
}

func TestHasCycles_SelfLoop(t *testing.T) {
	g := New[string]()
	g.AddEdge("A", "A", "x")
	assert.True(t, g.HasCycles())
}

func TestFindCycles_ReturnsOffendingEdges(t *testing.T) {
	g := New[string]()
	g.AddEdge("A", "B", "lockA")
	g.AddEdge("B", "A", "lockB")

	cycles := g.FindCycles()
	require.Len(t, cycles, 1)

	labels := map[string]bool{}
	for _, e := range cycles[0] {
		labels[e.Label] = true
	}
	assert.True(t, labels["lockA"])
	assert.True(t, labels["lockB"])
}

func TestRemoveNode_DropsIncidentEdges(t *testing.T) {
	g := New[string]()
	g.AddEdge("A", "B", "x")
	g.AddEdge("B", "A", "y")
	g.RemoveNode("B")

	assert.False(t, g.HasCycles())
	assert.ElementsMatch(t, []string{"A"}, g.Nodes())
}

func TestAddNode_WithoutEdgesIsTracked(t *testing.T) {
	g := New[string]()
	g.AddNode("lonely")
	assert.ElementsMatch(t, []string{"lonely"}, g.Nodes())
	assert.False(t, g.HasCycles())
}
