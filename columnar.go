// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package calcgraph

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

type columnKind uint8

const (
	columnUnset columnKind = iota
	columnNumeric
	columnText
	columnMixed
)

// column is one (sheet, col) lane of the columnar store: a dense base
// representation chosen by the first literal written (numeric/text),
// promoted to the Literal-slice mixed fallback the moment a value of a
// different shape lands in it, plus a sparse computed overlay written by
// the effects-apply step for formula cells.
type column struct {
	kind columnKind

	nums     []float64
	numValid []bool

	texts     []string
	textValid []bool

	mixed []Literal

	overlay map[int32]Literal
}

func (c *column) ensureLen(n int32) {
	switch c.kind {
	case columnNumeric:
		for int32(len(c.nums)) < n {
			c.nums = append(c.nums, 0)
			c.numValid = append(c.numValid, false)
		}
	case columnText:
		for int32(len(c.texts)) < n {
			c.texts = append(c.texts, "")
			c.textValid = append(c.textValid, false)
		}
	case columnMixed:
		for int32(len(c.mixed)) < n {
			c.mixed = append(c.mixed, Empty())
		}
	}
}

func literalIsNumericish(l Literal) bool {
	switch l.Kind {
	case LiteralInt, LiteralNumber, LiteralDate, LiteralDateTime, LiteralBoolean, LiteralEmpty:
		return true
	default:
		return false
	}
}

func (c *column) promoteToMixed(rowCount int) {
	mixed := make([]Literal, rowCount)
	switch c.kind {
	case columnNumeric:
		for i := range mixed {
			if i < len(c.nums) && c.numValid[i] {
				mixed[i] = NumberLiteral(c.nums[i])
			} else {
				mixed[i] = Empty()
			}
		}
	case columnText:
		for i := range mixed {
			if i < len(c.texts) && c.textValid[i] {
				mixed[i] = TextLiteral(c.texts[i])
			} else {
				mixed[i] = Empty()
			}
		}
	}
	c.nums, c.numValid, c.texts, c.textValid = nil, nil, nil, nil
	c.mixed = mixed
	c.kind = columnMixed
}

func (c *column) set(row int32, lit Literal) {
	switch c.kind {
	case columnUnset:
		if lit.Kind == LiteralText {
			c.kind = columnText
		} else {
			c.kind = columnNumeric
		}
	}
	c.ensureLen(row + 1)

	switch c.kind {
	case columnNumeric:
		if !literalIsNumericish(lit) {
			c.promoteToMixed(len(c.nums))
			c.mixed[row] = lit
			return
		}
		if lit.Kind == LiteralEmpty {
			c.numValid[row] = false
			return
		}
		f, _ := lit.AsFloat64()
		c.nums[row] = f
		c.numValid[row] = true
	case columnText:
		if lit.Kind != LiteralText && lit.Kind != LiteralEmpty {
			c.promoteToMixed(len(c.texts))
			c.mixed[row] = lit
			return
		}
		if lit.Kind == LiteralEmpty {
			c.textValid[row] = false
			return
		}
		c.texts[row] = lit.Text
		c.textValid[row] = true
	case columnMixed:
		c.mixed[row] = lit
	}
}

func (c *column) get(row int32) Literal {
	switch c.kind {
	case columnNumeric:
		if int(row) >= len(c.nums) || !c.numValid[row] {
			return Empty()
		}
		return NumberLiteral(c.nums[row])
	case columnText:
		if int(row) >= len(c.texts) || !c.textValid[row] {
			return Empty()
		}
		return TextLiteral(c.texts[row])
	case columnMixed:
		if int(row) >= len(c.mixed) {
			return Empty()
		}
		return c.mixed[row]
	default:
		return Empty()
	}
}

type sheetColumns struct {
	cols map[int32]*column
}

func newSheetColumns() *sheetColumns { return &sheetColumns{cols: make(map[int32]*column)} }

func (s *sheetColumns) column(col int32) *column {
	c, ok := s.cols[col]
	if !ok {
		c = &column{overlay: make(map[int32]Literal)}
		s.cols[col] = c
	}
	return c
}

// ColumnarStore is the per-sheet, per-column range-shaped value store
// ("Arrow-truth" mode's backing storage): bulk ingest, point reads, range
// views materialized as real Arrow arrays for numeric reductions, and a
// computed overlay the effects pipeline writes formula results into.
type ColumnarStore struct {
	mem    memory.Allocator
	sheets map[SheetID]*sheetColumns

	arrowCanonical    bool
	maxOverlayBytes   int64
	overlayBytesInUse int64
	overlayFallback   bool
}

// NewColumnarStore creates an empty store. maxOverlayBytes <= 0 means
// unbounded. arrowCanonical mirrors Config.ArrowCanonicalValues: when set,
// overlay-budget exhaustion panics instead of silently degrading reads.
func NewColumnarStore(maxOverlayBytes int64, arrowCanonical bool) *ColumnarStore {
	return &ColumnarStore{
		mem:             memory.NewGoAllocator(),
		sheets:          make(map[SheetID]*sheetColumns),
		arrowCanonical:  arrowCanonical,
		maxOverlayBytes: maxOverlayBytes,
	}
}

func (cs *ColumnarStore) sheet(id SheetID) *sheetColumns {
	sc, ok := cs.sheets[id]
	if !ok {
		sc = newSheetColumns()
		cs.sheets[id] = sc
	}
	return sc
}

// IngestRow writes one base-data row in bulk, creating columns on demand.
func (cs *ColumnarStore) IngestRow(sheet SheetID, row int32, values map[int32]Literal) {
	sc := cs.sheet(sheet)
	for col, lit := range values {
		sc.column(col).set(row, lit)
	}
}

// approxLiteralBytes is a rough per-entry accounting unit for the overlay
// memory budget; exactness doesn't matter, only monotonic growth does.
const approxLiteralBytes = 48

// Write is the apply step's entry point: it installs a formula result into
// the per-column computed overlay (never the base storage, which is
// reserved for ingested/authoritative data).
func (cs *ColumnarStore) Write(sheet SheetID, row, col int32, lit Literal) {
	if cs.maxOverlayBytes > 0 && atomic.LoadInt64(&cs.overlayBytesInUse) >= cs.maxOverlayBytes {
		cs.handleOverlayBudgetExceeded()
		if cs.overlayFallback {
			return
		}
	}
	sc := cs.sheet(sheet)
	c := sc.column(col)
	if _, existed := c.overlay[row]; !existed {
		atomic.AddInt64(&cs.overlayBytesInUse, approxLiteralBytes)
	}
	c.overlay[row] = lit
}

func (cs *ColumnarStore) handleOverlayBudgetExceeded() {
	if cs.arrowCanonical {
		panic(ErrOverlayBudget)
	}
	for _, sc := range cs.sheets {
		for _, c := range sc.cols {
			c.overlay = make(map[int32]Literal)
		}
	}
	atomic.StoreInt64(&cs.overlayBytesInUse, 0)
	cs.overlayFallback = true
}

// OverlayFallback reports whether the overlay was cleared due to budget
// exhaustion; callers in graph-truth mode should re-materialize reads
// through the graph value cache instead of trusting the overlay.
func (cs *ColumnarStore) OverlayFallback() bool { return cs.overlayFallback }

// Read returns the value at (sheet,row,col): overlay first, then base.
func (cs *ColumnarStore) Read(sheet SheetID, row, col int32) Literal {
	sc, ok := cs.sheets[sheet]
	if !ok {
		return Empty()
	}
	c, ok := sc.cols[col]
	if !ok {
		return Empty()
	}
	if v, ok := c.overlay[row]; ok {
		return v
	}
	return c.get(row)
}

// RangeView is a materialized (row0..row1, col0..col1) read, with per-cell
// access and, for columns holding at least one numeric cell in the span, a
// real Arrow Float64 array (non-numeric cells as nulls) for bulk numeric
// reduction.
type RangeView struct {
	R0, C0, R1, C1 int32
	cs             *ColumnarStore
	sheet          SheetID
}

// RangeView opens a read-only view over the rectangle.
func (cs *ColumnarStore) RangeView(sheet SheetID, r0, c0, r1, c1 int32) *RangeView {
	return &RangeView{R0: r0, C0: c0, R1: r1, C1: c1, cs: cs, sheet: sheet}
}

// ForEach visits every cell in the view in row-major order.
func (v *RangeView) ForEach(f func(row, col int32, lit Literal)) {
	for row := v.R0; row <= v.R1; row++ {
		for col := v.C0; col <= v.C1; col++ {
			f(row, col, v.cs.Read(v.sheet, row, col))
		}
	}
}

// NumericColumn materializes column col over [R0,R1] as an Arrow Float64
// array (overlay-aware), with nulls for empty/non-numeric cells. ok is
// false only if every cell in the span is non-numeric.
func (v *RangeView) NumericColumn(col int32) (arr *array.Float64, ok bool) {
	b := array.NewFloat64Builder(v.cs.mem)
	defer b.Release()
	any := false
	for row := v.R0; row <= v.R1; row++ {
		lit := v.cs.Read(v.sheet, row, col)
		if f, isNum := lit.AsFloat64(); isNum {
			b.Append(f)
			any = true
		} else {
			b.AppendNull()
		}
	}
	if !any {
		return nil, false
	}
	return b.NewFloat64Array(), true
}

// TextColumn materializes column col over [R0,R1] as an Arrow String array.
func (v *RangeView) TextColumn(col int32) *array.String {
	b := array.NewStringBuilder(v.cs.mem)
	defer b.Release()
	for row := v.R0; row <= v.R1; row++ {
		lit := v.cs.Read(v.sheet, row, col)
		if lit.Kind == LiteralText {
			b.Append(lit.Text)
		} else {
			b.AppendNull()
		}
	}
	return b.NewStringArray()
}

// InsertRows shifts every row >= at down by n (n > 0) within sheet,
// rewriting base storage and overlays.
func (cs *ColumnarStore) InsertRows(sheet SheetID, at, n int32) {
	sc, ok := cs.sheets[sheet]
	if !ok {
		return
	}
	for _, c := range sc.cols {
		shiftColumnRows(c, at, n)
	}
}

// DeleteRows removes n rows starting at `at` within sheet, shifting later
// rows up and dropping their overlays/base entries.
func (cs *ColumnarStore) DeleteRows(sheet SheetID, at, n int32) {
	sc, ok := cs.sheets[sheet]
	if !ok {
		return
	}
	for _, c := range sc.cols {
		shiftColumnRows(c, at, -n)
	}
}

func shiftColumnRows(c *column, at, delta int32) {
	newOverlay := make(map[int32]Literal, len(c.overlay))
	for row, lit := range c.overlay {
		nr := shiftedRow(row, at, delta)
		if nr >= 0 {
			newOverlay[nr] = lit
		}
	}
	c.overlay = newOverlay

	switch c.kind {
	case columnNumeric:
		nums, valid := c.nums, c.numValid
		c.nums, c.numValid = nil, nil
		for row, v := range nums {
			if !valid[row] {
				continue
			}
			nr := shiftedRow(int32(row), at, delta)
			if nr >= 0 {
				c.ensureLen(nr + 1)
				c.nums[nr] = v
				c.numValid[nr] = true
			}
		}
	case columnText:
		texts, valid := c.texts, c.textValid
		c.texts, c.textValid = nil, nil
		for row, v := range texts {
			if !valid[row] {
				continue
			}
			nr := shiftedRow(int32(row), at, delta)
			if nr >= 0 {
				c.ensureLen(nr + 1)
				c.texts[nr] = v
				c.textValid[nr] = true
			}
		}
	case columnMixed:
		mixed := c.mixed
		c.mixed = nil
		for row, v := range mixed {
			if v.IsEmpty() {
				continue
			}
			nr := shiftedRow(int32(row), at, delta)
			if nr >= 0 {
				c.ensureLen(nr + 1)
				c.mixed[nr] = v
			}
		}
	}
}

func shiftedRow(row, at, delta int32) int32 {
	if delta > 0 {
		if row >= at {
			return row + delta
		}
		return row
	}
	n := -delta
	if row < at {
		return row
	}
	if row < at+n {
		return -1 // deleted
	}
	return row - n
}
