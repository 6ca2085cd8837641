package calcgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineWiresEveryComponent(t *testing.T) {
	e := NewEngine(DefaultConfig())
	assert.NotNil(t, e.Graph)
	assert.NotNil(t, e.Columns)
	assert.NotNil(t, e.Spill)
	assert.NotNil(t, e.Effects)
	assert.NotNil(t, e.Eval)
	assert.NotNil(t, e.Registry)
	assert.NotNil(t, e.Log)
	assert.NotNil(t, e.Undo)
	assert.NotNil(t, e.Masks)
	assert.NotNil(t, e.Flats)
	assert.NotNil(t, e.Metrics)

	fn, ok := e.Registry.Get("SUM")
	assert.True(t, ok)
	assert.Equal(t, "SUM", fn.Name)
}

func TestEngineSetCellValueAndEvaluateAll(t *testing.T) {
	e := NewEngine(DefaultConfig())
	sheet := e.AddSheet("Sheet1")

	_, err := e.SetCellValue(sheet, 0, 0, NumberLiteral(7))
	require.NoError(t, err)
	_, err = e.SetCellFormula(sheet, 1, 0, &Formula{AST: cellRefNode(0, 0)})
	require.NoError(t, err)

	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NumberLiteral(7), e.GetCellValue(sheet, 1, 0))
}

func TestEngineGetCellValueArrowCanonicalReadsColumnsOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArrowCanonicalValues = true
	e := NewEngine(cfg)
	sheet := e.AddSheet("Sheet1")

	_, err := e.SetCellValue(sheet, 0, 0, NumberLiteral(3))
	require.NoError(t, err)

	// Graph cache already holds the literal, but columnar mirroring only
	// happens via the effects pipeline during evaluation, so an
	// un-evaluated read under Arrow-canonical mode must see nothing yet.
	assert.True(t, e.GetCellValue(sheet, 0, 0).IsEmpty())

	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NumberLiteral(3), e.GetCellValue(sheet, 0, 0))
}

func TestEngineReadRangeServesFromColumnarStore(t *testing.T) {
	e := NewEngine(DefaultConfig())
	sheet := e.AddSheet("Sheet1")

	for row := int32(0); row < 3; row++ {
		_, err := e.SetCellValue(sheet, row, 0, NumberLiteral(float64(row)))
		require.NoError(t, err)
	}
	_, err := e.EvaluateAll(context.Background())
	require.NoError(t, err)

	view := e.ReadRange(sheet, 0, 0, 2, 0)
	var total float64
	view.ForEach(func(row, col int32, lit Literal) {
		f, _ := lit.AsFloat64()
		total += f
	})
	assert.Equal(t, 3.0, total)
}

func TestEngineSubtotalWiresMaskAndFlatCaches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableParallel = false // deterministic plan order: B1 builds the cache entry, C1 must hit it
	e := NewEngine(cfg)
	sheet := e.AddSheet("Sheet1")

	for row := int32(0); row < 3; row++ {
		_, err := e.SetCellValue(sheet, row, 0, NumberLiteral(float64(row+1))) // A1=1, A2=2, A3=3
		require.NoError(t, err)
	}
	_, err := e.SetCellFormula(sheet, 0, 1, &Formula{ // B1 = SUBTOTAL(9, A1:A3)
		AST: callNode("SUBTOTAL", litNode(IntLiteral(9)), rangeRefNode(0, 0, 2, 0)),
	})
	require.NoError(t, err)
	_, err = e.SetCellFormula(sheet, 0, 2, &Formula{ // C1 = SUBTOTAL(109, A1:A3), same range/mode
		AST: callNode("SUBTOTAL", litNode(IntLiteral(109)), rangeRefNode(0, 0, 2, 0)),
	})
	require.NoError(t, err)

	_, err = e.EvaluateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, NumberLiteral(6), e.GetCellValue(sheet, 0, 1))
	assert.Equal(t, NumberLiteral(6), e.GetCellValue(sheet, 0, 2))

	snap := e.Metrics.Snapshot()
	assert.Greater(t, snap.FlatViewsBuilt, int64(0), "the first SUBTOTAL over A1:A3 must build a flat view")
	assert.Greater(t, snap.FlatCacheHits, int64(0), "the second SUBTOTAL over the same range must hit the flat cache")
	assert.Greater(t, snap.MasksBuilt, int64(0), "SUBTOTAL(109,...) builds a visibility mask")
}

func TestEngineBulkIngestNotUndoLogged(t *testing.T) {
	e := NewEngine(DefaultConfig())

	b := e.BeginBulkIngest()
	sheet := b.AddSheet("Sheet1")
	b.AddValue(sheet, 0, 0, NumberLiteral(1))
	b.Finish()

	assert.Equal(t, 0, e.Log.Len())
	assert.False(t, e.Undo.CanUndo())
}
