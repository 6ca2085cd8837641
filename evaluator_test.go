package calcgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callNode(fn string, args ...*Node) *Node {
	return &Node{Kind: NodeCall, Func: fn, Args: args}
}

func litNode(lit Literal) *Node { return &Node{Kind: NodeLiteral, Lit: lit} }

func TestEngineLinearChainRecalculatesInOrder(t *testing.T) {
	e := NewEngine(DefaultConfig())
	sheet := e.AddSheet("Sheet1")

	_, err := e.SetCellValue(sheet, 0, 0, NumberLiteral(2)) // A1 = 2
	require.NoError(t, err)
	_, err = e.SetCellFormula(sheet, 0, 1, &Formula{AST: cellRefNode(0, 0)}) // B1 = A1
	require.NoError(t, err)
	_, err = e.SetCellFormula(sheet, 0, 2, &Formula{AST: cellRefNode(0, 1)}) // C1 = B1
	require.NoError(t, err)

	result, err := e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.CyclesDetected)
	assert.Equal(t, NumberLiteral(2), e.GetCellValue(sheet, 0, 1))
	assert.Equal(t, NumberLiteral(2), e.GetCellValue(sheet, 0, 2))
}

func TestEngineDynamicArraySpillAndRetraction(t *testing.T) {
	e := NewEngine(DefaultConfig())
	sheet := e.AddSheet("Sheet1")

	_, err := e.SetCellFormula(sheet, 0, 0, &Formula{ // A1 = SEQUENCE(3,1)
		AST:       callNode("SEQUENCE", litNode(IntLiteral(3)), litNode(IntLiteral(1))),
		ArrayHint: true,
	})
	require.NoError(t, err)
	_, err = e.SetCellFormula(sheet, 0, 1, &Formula{ // B1 = SUM(A1:A3)
		AST: callNode("SUM", rangeRefNode(0, 0, 2, 0)),
	})
	require.NoError(t, err)

	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, NumberLiteral(1), e.GetCellValue(sheet, 0, 0))
	assert.Equal(t, NumberLiteral(2), e.GetCellValue(sheet, 1, 0))
	assert.Equal(t, NumberLiteral(3), e.GetCellValue(sheet, 2, 0))
	assert.Equal(t, NumberLiteral(6), e.GetCellValue(sheet, 0, 1))

	anchor, ok := e.Graph.CellVertex(sheet, 0, 0)
	require.True(t, ok)
	assert.True(t, e.Spill.HasProjection(anchor))

	// Re-pointing the same formula cell at a scalar result (rather than
	// bypassing it with a bare SetCellValue, which is an accepted gap —
	// see the "Spill bookkeeping vs. direct editor overwrite" decision in
	// DESIGN.md) must retract the prior projection through the normal
	// evaluator path: planVertex's FormulaArray branch detects the
	// formula no longer produces a multi-cell array and emits a
	// SpillClearEffect before writing the new scalar.
	_, err = e.SetCellFormula(sheet, 0, 0, &Formula{AST: litNode(NumberLiteral(99)), ArrayHint: true})
	require.NoError(t, err)
	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, NumberLiteral(99), e.GetCellValue(sheet, 0, 0))
	assert.False(t, e.Spill.HasProjection(anchor))
	assert.Equal(t, VertexEmpty, e.Graph.vs.Kind(mustVertex(t, e, sheet, 1, 0)))
	assert.Equal(t, VertexEmpty, e.Graph.vs.Kind(mustVertex(t, e, sheet, 2, 0)))
}

func mustVertex(t *testing.T, e *Engine, sheet SheetID, row, col int32) VertexID {
	t.Helper()
	id, ok := e.Graph.CellVertex(sheet, row, col)
	require.True(t, ok)
	return id
}

func TestEngineSpillConflictProducesSpillError(t *testing.T) {
	e := NewEngine(DefaultConfig())
	sheet := e.AddSheet("Sheet1")

	_, err := e.SetCellValue(sheet, 1, 0, TextLiteral("blocked")) // A2 occupied
	require.NoError(t, err)
	_, err = e.SetCellFormula(sheet, 0, 0, &Formula{ // A1 = SEQUENCE(3,1)
		AST:       callNode("SEQUENCE", litNode(IntLiteral(3)), litNode(IntLiteral(1))),
		ArrayHint: true,
	})
	require.NoError(t, err)

	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)

	lit := e.GetCellValue(sheet, 0, 0)
	require.True(t, lit.IsError())
	assert.Equal(t, ErrSpill, lit.ErrKind)
}

func TestEngineTwoNodeCycleReportsCircularError(t *testing.T) {
	e := NewEngine(DefaultConfig())
	sheet := e.AddSheet("Sheet1")

	_, err := e.SetCellFormula(sheet, 0, 0, &Formula{AST: cellRefNode(0, 1)}) // A1 = B1
	require.NoError(t, err)
	_, err = e.SetCellFormula(sheet, 0, 1, &Formula{AST: cellRefNode(0, 0)}) // B1 = A1
	require.NoError(t, err)

	result, err := e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.CyclesDetected)

	lit := e.GetCellValue(sheet, 0, 0)
	require.True(t, lit.IsError())
	assert.Equal(t, ErrCircular, lit.ErrKind)
}

func TestEngineStripePrecisionEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RangeExpansionLimit = 2 // force A1:A10 to stripe-index
	e := NewEngine(cfg)
	sheet := e.AddSheet("Sheet1")

	for row := int32(0); row < 10; row++ {
		_, err := e.SetCellValue(sheet, row, 0, NumberLiteral(1))
		require.NoError(t, err)
	}
	_, err := e.SetCellFormula(sheet, 0, 1, &Formula{AST: callNode("SUM", rangeRefNode(0, 0, 9, 0))}) // B1=SUM(A1:A10)
	require.NoError(t, err)

	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NumberLiteral(10), e.GetCellValue(sheet, 0, 1))

	_, err = e.SetCellValue(sheet, 10, 0, NumberLiteral(1000)) // A11, outside the range
	require.NoError(t, err)
	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NumberLiteral(10), e.GetCellValue(sheet, 0, 1), "A11 is outside A1:A10, B1 must be unaffected")

	_, err = e.SetCellValue(sheet, 4, 0, NumberLiteral(100)) // A5, inside the range
	require.NoError(t, err)
	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NumberLiteral(109), e.GetCellValue(sheet, 0, 1), "A5 is inside A1:A10, B1 must recompute")
}

func TestEngineSubtotalExcludesHiddenRows(t *testing.T) {
	e := NewEngine(DefaultConfig())
	sheet := e.AddSheet("Sheet1")

	for row := int32(0); row < 3; row++ {
		_, err := e.SetCellValue(sheet, row, 0, NumberLiteral(float64(row+1))) // A1=1, A2=2, A3=3
		require.NoError(t, err)
	}
	_, err := e.SetCellFormula(sheet, 0, 1, &Formula{ // B1 = SUBTOTAL(109, A1:A3)
		AST: callNode("SUBTOTAL", litNode(IntLiteral(109)), rangeRefNode(0, 0, 2, 0)),
	})
	require.NoError(t, err)

	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NumberLiteral(6), e.GetCellValue(sheet, 0, 1))

	e.SetManualRowHidden(sheet, 1, true) // hide A2's row
	e.Graph.MarkDirty(mustVertex(t, e, sheet, 0, 1))
	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NumberLiteral(4), e.GetCellValue(sheet, 0, 1), "hidden row 1 must be excluded from SUBTOTAL(109,...)")
}
