package calcgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnarStoreIngestAndRead(t *testing.T) {
	cs := NewColumnarStore(0, false)
	sheet := SheetID(0)
	cs.IngestRow(sheet, 0, map[int32]Literal{0: NumberLiteral(10)})
	cs.IngestRow(sheet, 1, map[int32]Literal{0: NumberLiteral(20)})

	assert.Equal(t, NumberLiteral(10), cs.Read(sheet, 0, 0))
	assert.True(t, cs.Read(sheet, 5, 0).IsEmpty())
}

func TestColumnarStoreWriteOverlayTakesPrecedence(t *testing.T) {
	cs := NewColumnarStore(0, false)
	sheet := SheetID(0)
	cs.IngestRow(sheet, 0, map[int32]Literal{0: NumberLiteral(1)})
	cs.Write(sheet, 0, 0, NumberLiteral(99))

	assert.Equal(t, NumberLiteral(99), cs.Read(sheet, 0, 0))
}

func TestColumnarStoreMixedColumnPromotion(t *testing.T) {
	cs := NewColumnarStore(0, false)
	sheet := SheetID(0)
	cs.IngestRow(sheet, 0, map[int32]Literal{0: NumberLiteral(1)})
	cs.IngestRow(sheet, 1, map[int32]Literal{0: TextLiteral("x")})

	assert.Equal(t, NumberLiteral(1), cs.Read(sheet, 0, 0))
	assert.Equal(t, TextLiteral("x"), cs.Read(sheet, 1, 0))
}

func TestColumnarStoreRangeViewForEachAndNumericColumn(t *testing.T) {
	cs := NewColumnarStore(0, false)
	sheet := SheetID(0)
	for row := int32(0); row < 3; row++ {
		cs.IngestRow(sheet, row, map[int32]Literal{0: NumberLiteral(float64(row + 1))})
	}

	view := cs.RangeView(sheet, 0, 0, 2, 0)
	var total float64
	view.ForEach(func(row, col int32, lit Literal) {
		f, ok := lit.AsFloat64()
		require.True(t, ok)
		total += f
	})
	assert.Equal(t, 6.0, total)

	arr, ok := view.NumericColumn(0)
	require.True(t, ok)
	assert.Equal(t, 3, arr.Len())
}

func TestColumnarStoreOverlayBudgetFallback(t *testing.T) {
	cs := NewColumnarStore(approxLiteralBytes, false) // budget for exactly one entry
	sheet := SheetID(0)
	cs.Write(sheet, 0, 0, NumberLiteral(1))
	cs.Write(sheet, 1, 0, NumberLiteral(2)) // exceeds budget: clears overlay, falls back

	assert.True(t, cs.OverlayFallback())
}

func TestColumnarStoreOverlayBudgetPanicsUnderArrowCanonical(t *testing.T) {
	cs := NewColumnarStore(approxLiteralBytes, true)
	sheet := SheetID(0)
	cs.Write(sheet, 0, 0, NumberLiteral(1))

	assert.PanicsWithValue(t, ErrOverlayBudget, func() {
		cs.Write(sheet, 1, 0, NumberLiteral(2))
	})
}

func TestColumnarStoreInsertAndDeleteRowsShift(t *testing.T) {
	cs := NewColumnarStore(0, false)
	sheet := SheetID(0)
	cs.IngestRow(sheet, 0, map[int32]Literal{0: NumberLiteral(1)})
	cs.IngestRow(sheet, 1, map[int32]Literal{0: NumberLiteral(2)})

	cs.InsertRows(sheet, 1, 1) // row 1 becomes row 2
	assert.Equal(t, NumberLiteral(1), cs.Read(sheet, 0, 0))
	assert.Equal(t, NumberLiteral(2), cs.Read(sheet, 2, 0))
	assert.True(t, cs.Read(sheet, 1, 0).IsEmpty())

	cs.DeleteRows(sheet, 0, 1) // drop row 0, row 2 becomes row 1
	assert.Equal(t, NumberLiteral(2), cs.Read(sheet, 1, 0))
}
