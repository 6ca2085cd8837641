package calcgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeScheduleLinearChainLayersInOrder(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	sheet := g.Sheet.IDFor("Sheet1")

	_, err := g.SetCellValue(sheet, 0, 0, IntLiteral(1)) // A1
	require.NoError(t, err)
	_, err = g.SetCellFormula(sheet, 0, 1, &Formula{AST: cellRefNode(0, 0)}) // B1 = A1
	require.NoError(t, err)
	_, err = g.SetCellFormula(sheet, 0, 2, &Formula{AST: cellRefNode(0, 1)}) // C1 = B1
	require.NoError(t, err)

	a1, _ := g.CellVertex(sheet, 0, 0)
	b1, _ := g.CellVertex(sheet, 0, 1)
	c1, _ := g.CellVertex(sheet, 0, 2)

	sched := ComputeSchedule(g.vs, g.DirtyVertices())
	require.Empty(t, sched.Cycles)
	require.Len(t, sched.Layers, 3)
	assert.Equal(t, []VertexID{a1}, sched.Layers[0].Vertices)
	assert.Equal(t, []VertexID{b1}, sched.Layers[1].Vertices)
	assert.Equal(t, []VertexID{c1}, sched.Layers[2].Vertices)
}

func TestComputeScheduleTwoNodeCycleReportedNotLayered(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	sheet := g.Sheet.IDFor("Sheet1")

	a1, err := g.SetCellFormula(sheet, 0, 0, &Formula{AST: cellRefNode(0, 1)}) // A1 = B1
	require.NoError(t, err)
	b1, err := g.SetCellFormula(sheet, 0, 1, &Formula{AST: cellRefNode(0, 0)}) // B1 = A1
	require.NoError(t, err)

	sched := ComputeSchedule(g.vs, g.DirtyVertices())
	require.Len(t, sched.Cycles, 1)
	assert.ElementsMatch(t, []VertexID{a1, b1}, sched.Cycles[0])
	for _, layer := range sched.Layers {
		assert.NotContains(t, layer.Vertices, a1)
		assert.NotContains(t, layer.Vertices, b1)
	}
}

func TestComputeScheduleSelfLoopIsACycle(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	sheet := g.Sheet.IDFor("Sheet1")

	a1, err := g.SetCellFormula(sheet, 0, 0, &Formula{AST: cellRefNode(0, 0)}) // A1 = A1
	require.NoError(t, err)

	sched := ComputeSchedule(g.vs, g.DirtyVertices())
	require.Len(t, sched.Cycles, 1)
	assert.Equal(t, []VertexID{a1}, sched.Cycles[0])
	assert.Empty(t, sched.Layers)
}

func TestComputeScheduleIndependentCellsShareALayer(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	sheet := g.Sheet.IDFor("Sheet1")

	a1, err := g.SetCellValue(sheet, 0, 0, IntLiteral(1))
	require.NoError(t, err)
	a2, err := g.SetCellValue(sheet, 1, 0, IntLiteral(2))
	require.NoError(t, err)

	sched := ComputeSchedule(g.vs, g.DirtyVertices())
	require.Len(t, sched.Layers, 1)
	assert.ElementsMatch(t, []VertexID{a1, a2}, sched.Layers[0].Vertices)
}
