package calcgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellRefNode(row, col int32) *Node {
	return &Node{Kind: NodeCellRef, Cell: CellRef{Row: row, Col: col}}
}

func rangeRefNode(r0, c0, r1, c1 int32) *Node {
	return &Node{Kind: NodeRangeRef, Range: RangeRef{R0: r0, C0: c0, R1: r1, C1: c1}}
}

func TestSetCellValueUnknownSheet(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	_, err := g.SetCellValue(SheetID(7), 0, 0, IntLiteral(1))
	assert.ErrorIs(t, err, ErrUnknownSheet)
}

func TestSetCellValueAndMarkDirtyPropagatesThroughDirectEdge(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	sheet := g.Sheet.IDFor("Sheet1")

	_, err := g.SetCellValue(sheet, 0, 0, IntLiteral(1))
	require.NoError(t, err)

	b1, err := g.SetCellFormula(sheet, 0, 1, &Formula{AST: cellRefNode(0, 0)})
	require.NoError(t, err)

	// After install, both A1 and B1 start dirty.
	assert.True(t, g.IsDirty(b1))
	g.ClearDirtyFlags(g.DirtyVertices())

	a1, _ := g.CellVertex(sheet, 0, 0)
	g.MarkDirty(a1)
	assert.True(t, g.IsDirty(a1))
	assert.True(t, g.IsDirty(b1), "B1 depends on A1 so must be dirtied transitively")
}

func TestClearCellCollapsesAndDirtiesDependents(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	sheet := g.Sheet.IDFor("Sheet1")

	_, err := g.SetCellValue(sheet, 0, 0, IntLiteral(10))
	require.NoError(t, err)
	b1, err := g.SetCellFormula(sheet, 0, 1, &Formula{AST: cellRefNode(0, 0)})
	require.NoError(t, err)
	g.ClearDirtyFlags(g.DirtyVertices())

	require.NoError(t, g.ClearCell(sheet, 0, 0))
	assert.True(t, g.IsDirty(b1))

	a1, ok := g.CellVertex(sheet, 0, 0)
	require.True(t, ok)
	assert.Equal(t, VertexEmpty, g.vs.Kind(a1))
}

func TestClearCellNeverAllocatedIsNoop(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	sheet := g.Sheet.IDFor("Sheet1")
	assert.NoError(t, g.ClearCell(sheet, 5, 5))
	_, ok := g.CellVertex(sheet, 5, 5)
	assert.False(t, ok)
}

func TestDefineNameLiteralAndFormulaReference(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	sheet := g.Sheet.IDFor("Sheet1")
	lit := IntLiteral(42)

	id, err := g.DefineName("Answer", NamedDefinition{Literal: &lit}, NameScope{Workbook: true})
	require.NoError(t, err)
	assert.Equal(t, lit, g.vs.Literal(id))

	formulaID, err := g.SetCellFormula(sheet, 0, 0, &Formula{AST: &Node{Kind: NodeNameRef, Name: "Answer"}})
	require.NoError(t, err)
	assert.Contains(t, g.vs.Dependencies(formulaID), id)
}

func TestRemoveNameCollapsesVertex(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig())
	lit := IntLiteral(1)
	scope := NameScope{Workbook: true}
	id, err := g.DefineName("X", NamedDefinition{Literal: &lit}, scope)
	require.NoError(t, err)

	require.NoError(t, g.RemoveName("X", scope))
	assert.Equal(t, VertexEmpty, g.vs.Kind(id))
	_, err = g.DefineName("X", NamedDefinition{}, scope) // redefining after removal installs a fresh entry
	assert.Error(t, err, "empty NamedDefinition is rejected regardless of prior removal")
}

// TestStripePrecisionBoundedLargeRange exercises the "SUM(A1:A10) unaffected by
// editing A11 but affected by editing A5" scenario at the graph layer: a
// range over the expansion limit is stripe-indexed, and MarkDirty must only
// follow dependents whose stored rectangle actually contains the edited cell.
func TestStripePrecisionBoundedLargeRange(t *testing.T) {
	cfg := DefaultGraphConfig()
	cfg.RangeExpansionLimit = 2 // force A1:A10 (10 cells) to stripe-index
	g := NewDependencyGraph(cfg)
	sheet := g.Sheet.IDFor("Sheet1")

	sum, err := g.SetCellFormula(sheet, 0, 1, &Formula{AST: rangeRefNode(0, 0, 9, 0)}) // B1 = range A1:A10
	require.NoError(t, err)
	g.ClearDirtyFlags(g.DirtyVertices())

	// Editing A11 (row 10, outside A1:A10) must not dirty B1.
	a11, err := g.SetCellValue(sheet, 10, 0, IntLiteral(99))
	require.NoError(t, err)
	assert.False(t, g.IsDirty(sum), "A11 is outside A1:A10, B1 must stay clean")
	g.ClearDirtyFlags([]VertexID{a11})

	// Editing A5 (row 4, inside A1:A10) must dirty B1.
	a5, err := g.SetCellValue(sheet, 4, 0, IntLiteral(5))
	require.NoError(t, err)
	assert.True(t, g.IsDirty(sum), "A5 is inside A1:A10, B1 must be dirtied")
	_ = a5
}

func TestConnectReferencesSmallRangeExpandsToDirectEdges(t *testing.T) {
	g := NewDependencyGraph(DefaultGraphConfig()) // default limit 64
	sheet := g.Sheet.IDFor("Sheet1")

	sum, err := g.SetCellFormula(sheet, 0, 2, &Formula{AST: rangeRefNode(0, 0, 1, 0)}) // C1 = SUM-shaped range A1:A2
	require.NoError(t, err)

	a1, _ := g.CellVertex(sheet, 0, 0)
	a2, _ := g.CellVertex(sheet, 1, 0)
	deps := g.vs.Dependencies(sum)
	assert.Contains(t, deps, a1)
	assert.Contains(t, deps, a2)
}
