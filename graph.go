// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package calcgraph

import "fmt"

// GraphConfig carries the range-indexing knobs of spec §6's configuration
// table that affect DependencyGraph construction and edge extraction.
type GraphConfig struct {
	RangeExpansionLimit int
	StripeHeight        int32
	StripeWidth         int32
	EnableBlockStripes  bool
}

// DefaultGraphConfig matches spec §6's defaults.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{RangeExpansionLimit: 64, StripeHeight: 256, StripeWidth: 256}
}

type cellKey struct {
	sheet    SheetID
	row, col int32
}

// sheetStripes is the range/stripe index for one sheet: a row-banded tree
// (for refs finite in the row dimension) and a column-banded tree (for
// refs finite only in the column dimension), plus the exact rectangle
// each indexed dependent actually covers — queried bands are candidates
// only; dirty propagation re-checks literal containment against rects.
type sheetStripes struct {
	rowIdx *IntervalTree
	colIdx *IntervalTree
	rects  map[VertexID][]RangeRef
}

func newSheetStripes() *sheetStripes {
	return &sheetStripes{rowIdx: NewIntervalTree(), colIdx: NewIntervalTree(), rects: make(map[VertexID][]RangeRef)}
}

// NameScope scopes a defined name to the whole workbook or to one sheet.
type NameScope struct {
	Workbook bool
	Sheet    SheetID
}

type nameKey struct {
	name  string
	scope NameScope
}

// NamedDefinition is what a defined name resolves to.
type NamedDefinition struct {
	Cell    *CellRef
	Range   *RangeRef
	Literal *Literal
	Formula *Node
}

type namedEntry struct {
	vertex VertexID
	scope  NameScope
}

// DependencyGraph owns the vertex arena, the cell<->vertex map, the
// per-sheet stripe indexes, named ranges, and per-sheet row visibility.
type DependencyGraph struct {
	cfg   GraphConfig
	Sheet *SheetRegistry

	vs *VertexStore

	cellVertex map[cellKey]VertexID
	infinite   map[SheetID]map[RangeRef]VertexID
	stripes    map[SheetID]*sheetStripes
	visibility map[SheetID]*RowVisibility

	names       map[nameKey]*namedEntry
	namesByName map[string][]*namedEntry // for removal/lookup scanning

	dirty map[VertexID]struct{}
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph(cfg GraphConfig) *DependencyGraph {
	return &DependencyGraph{
		cfg:         cfg,
		Sheet:       NewSheetRegistry(),
		vs:          NewVertexStore(),
		cellVertex:  make(map[cellKey]VertexID),
		infinite:    make(map[SheetID]map[RangeRef]VertexID),
		stripes:     make(map[SheetID]*sheetStripes),
		visibility:  make(map[SheetID]*RowVisibility),
		names:       make(map[nameKey]*namedEntry),
		namesByName: make(map[string][]*namedEntry),
		dirty:       make(map[VertexID]struct{}),
	}
}

// Vertices exposes the underlying arena for the scheduler/evaluator.
func (g *DependencyGraph) Vertices() *VertexStore { return g.vs }

// Visibility returns (lazily creating) the RowVisibility state for a sheet.
func (g *DependencyGraph) Visibility(sheet SheetID) *RowVisibility {
	rv, ok := g.visibility[sheet]
	if !ok {
		rv = NewRowVisibility()
		g.visibility[sheet] = rv
	}
	return rv
}

// ensureCellVertex returns the vertex for (sheet,row,col), creating an
// Empty placeholder vertex if the cell has never been written or referenced.
func (g *DependencyGraph) ensureCellVertex(sheet SheetID, row, col int32) VertexID {
	key := cellKey{sheet, row, col}
	if id, ok := g.cellVertex[key]; ok {
		return id
	}
	coord, err := NewPackedCoord(uint32(row), uint32(col))
	if err != nil {
		coord = InvalidCoord
	}
	id := g.vs.Alloc(VertexEmpty, sheet, coord)
	g.cellVertex[key] = id
	return id
}

// CellVertex returns the vertex id for (sheet,row,col) if one has been
// allocated, without creating it.
func (g *DependencyGraph) CellVertex(sheet SheetID, row, col int32) (VertexID, bool) {
	id, ok := g.cellVertex[cellKey{sheet, row, col}]
	return id, ok
}

func (g *DependencyGraph) ensureInfiniteRangeVertex(sheet SheetID, r RangeRef) VertexID {
	m, ok := g.infinite[sheet]
	if !ok {
		m = make(map[RangeRef]VertexID)
		g.infinite[sheet] = m
	}
	if id, ok := m[r]; ok {
		return id
	}
	id := g.vs.Alloc(VertexInfiniteRange, sheet, InvalidCoord)
	m[r] = id
	return id
}

func (g *DependencyGraph) stripesFor(sheet SheetID) *sheetStripes {
	st, ok := g.stripes[sheet]
	if !ok {
		st = newSheetStripes()
		g.stripes[sheet] = st
	}
	return st
}

// indexStripe records that dependent's evaluation reads rectangle r within
// sheet, indexed by whichever axis is finite (see DESIGN.md: row band if
// the row dimension is bounded, else column band; both-bounded large
// ranges default to the row band, optionally split into stripe_height
// chunks when EnableBlockStripes is set).
func (g *DependencyGraph) indexStripe(sheet SheetID, dependent VertexID, r RangeRef) {
	st := g.stripesFor(sheet)
	st.rects[dependent] = append(st.rects[dependent], r)

	rowFinite := r.R0 != openEnded && r.R1 != openEnded
	colFinite := r.C0 != openEnded && r.C1 != openEnded

	switch {
	case rowFinite:
		if g.cfg.EnableBlockStripes && g.cfg.StripeHeight > 0 {
			for lo := r.R0; lo <= r.R1; lo += g.cfg.StripeHeight {
				hi := lo + g.cfg.StripeHeight - 1
				if hi > r.R1 {
					hi = r.R1
				}
				st.rowIdx.Insert(lo, hi, dependent)
			}
		} else {
			st.rowIdx.Insert(r.R0, r.R1, dependent)
		}
	case colFinite:
		if g.cfg.EnableBlockStripes && g.cfg.StripeWidth > 0 {
			for lo := r.C0; lo <= r.C1; lo += g.cfg.StripeWidth {
				hi := lo + g.cfg.StripeWidth - 1
				if hi > r.C1 {
					hi = r.C1
				}
				st.colIdx.Insert(lo, hi, dependent)
			}
		} else {
			st.colIdx.Insert(r.C0, r.C1, dependent)
		}
	}
}

func rangeContainsCell(r RangeRef, row, col int32) bool {
	if r.R0 != openEnded && row < r.R0 {
		return false
	}
	if r.R1 != openEnded && row > r.R1 {
		return false
	}
	if r.C0 != openEnded && col < r.C0 {
		return false
	}
	if r.C1 != openEnded && col > r.C1 {
		return false
	}
	return true
}

// connectReferences walks node, wiring edges from self to whatever it
// reads: direct per-cell edges for small bounded ranges, an InfiniteRange
// anchor plus a stripe-index entry for unbounded/large ones, and an edge
// to the named-range vertex for name references.
func (g *DependencyGraph) connectReferences(self VertexID, sheet SheetID, node *Node) {
	if node == nil {
		return
	}
	switch node.Kind {
	case NodeLiteral:
	case NodeCellRef:
		refSheet := sheet
		if node.Cell.HasSheet {
			refSheet = node.Cell.Sheet
		}
		target := g.ensureCellVertex(refSheet, node.Cell.Row, node.Cell.Col)
		g.vs.AddEdge(self, target)
	case NodeRangeRef:
		refSheet := sheet
		if node.Range.HasSheet {
			refSheet = node.Range.Sheet
		}
		r := node.Range
		if r.IsBounded() && r.CellCount() <= g.cfg.RangeExpansionLimit {
			for row := r.R0; row <= r.R1; row++ {
				for col := r.C0; col <= r.C1; col++ {
					target := g.ensureCellVertex(refSheet, row, col)
					g.vs.AddEdge(self, target)
				}
			}
		} else {
			anchor := g.ensureInfiniteRangeVertex(refSheet, r)
			g.vs.AddEdge(self, anchor)
			g.indexStripe(refSheet, self, r)
		}
	case NodeNameRef:
		if entry, ok := g.resolveName(node.Name, sheet); ok {
			g.vs.AddEdge(self, entry.vertex)
		}
	case NodeCall:
		for _, a := range node.Args {
			g.connectReferences(self, sheet, a)
		}
	case NodeUnary:
		g.connectReferences(self, sheet, node.Operand)
	case NodeBinary:
		g.connectReferences(self, sheet, node.Left)
		g.connectReferences(self, sheet, node.Right)
	}
}

func (g *DependencyGraph) resolveName(name string, callingSheet SheetID) (*namedEntry, bool) {
	if e, ok := g.names[nameKey{name, NameScope{Sheet: callingSheet}}]; ok {
		return e, true
	}
	if e, ok := g.names[nameKey{name, NameScope{Workbook: true}}]; ok {
		return e, true
	}
	return nil, false
}

// releaseSpillProjection detects that id is currently owned as a spill
// projection target and disowns it: clears the projection flag/anchor
// link and dirties the owning anchor. Without this, an external write to
// a projected cell leaves FlagSpillProjected/SpillAnchorOf pointing at the
// anchor, and spill.go's PlanCommit mistakes the overwritten cell for its
// own prior projection on the next recalc instead of detecting a conflict.
func (g *DependencyGraph) releaseSpillProjection(id VertexID) {
	if !g.vs.HasFlag(id, FlagSpillProjected) {
		return
	}
	anchor := g.vs.SpillAnchorOf(id)
	g.vs.SetFlag(id, FlagSpillProjected, false)
	g.vs.SetSpillAnchor(id, InvalidVertexID)
	if anchor != InvalidVertexID {
		g.MarkDirty(anchor)
	}
}

// SetCellValue upserts (sheet,row,col) as a Value vertex, clears any prior
// AST/dependencies, and marks its dependents dirty.
func (g *DependencyGraph) SetCellValue(sheet SheetID, row, col int32, lit Literal) (VertexID, error) {
	if _, ok := g.Sheet.Name(sheet); !ok {
		return InvalidVertexID, fmt.Errorf("%w: %d", ErrUnknownSheet, sheet)
	}
	id := g.ensureCellVertex(sheet, row, col)
	g.releaseSpillProjection(id)
	g.vs.ClearDependencies(id)
	g.vs.SetFormula(id, nil)
	g.vs.SetKind(id, VertexValue)
	g.vs.SetLiteral(id, lit)
	g.vs.SetFlag(id, FlagArray, false)
	g.MarkDirty(id)
	return id, nil
}

// SetCellFormula upserts (sheet,row,col) as FormulaScalar (or FormulaArray
// when f.ArrayHint is set), wires dependency edges from the AST, and
// marks self and its dependents dirty.
func (g *DependencyGraph) SetCellFormula(sheet SheetID, row, col int32, f *Formula) (VertexID, error) {
	if _, ok := g.Sheet.Name(sheet); !ok {
		return InvalidVertexID, fmt.Errorf("%w: %d", ErrUnknownSheet, sheet)
	}
	id := g.ensureCellVertex(sheet, row, col)
	g.releaseSpillProjection(id)
	g.vs.ClearDependencies(id)
	kind := VertexFormulaScalar
	if f.ArrayHint {
		kind = VertexFormulaArray
	}
	g.vs.SetKind(id, kind)
	g.vs.SetFormula(id, f)
	g.vs.SetFlag(id, FlagArray, f.ArrayHint)
	g.connectReferences(id, sheet, f.AST)
	g.MarkDirty(id)
	return id, nil
}

// ClearCell collapses (sheet,row,col) to Empty, disconnects its edges, and
// dirties its dependents.
func (g *DependencyGraph) ClearCell(sheet SheetID, row, col int32) error {
	if _, ok := g.Sheet.Name(sheet); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSheet, sheet)
	}
	id, ok := g.CellVertex(sheet, row, col)
	if !ok {
		return nil
	}
	g.releaseSpillProjection(id)
	g.vs.ClearDependencies(id)
	g.vs.Clear(id)
	g.MarkDirty(id)
	return nil
}

// DefineName installs or updates a named-range vertex. A Literal definition
// is stored as the vertex's value. Cell/Range definitions are wired as a
// single cell- or range-reference AST node, so the name participates in
// dependency tracking like any formula; a Formula definition wires its own
// references directly.
func (g *DependencyGraph) DefineName(name string, def NamedDefinition, scope NameScope) (VertexID, error) {
	key := nameKey{name, scope}
	var id VertexID
	if e, ok := g.names[key]; ok {
		id = e.vertex
		g.vs.ClearDependencies(id)
	} else {
		id = g.vs.Alloc(VertexValue, InvalidSheetID, InvalidCoord)
		entry := &namedEntry{vertex: id, scope: scope}
		g.names[key] = entry
		g.namesByName[name] = append(g.namesByName[name], entry)
	}

	sheet := scope.Sheet
	var ast *Node
	switch {
	case def.Literal != nil:
		g.vs.SetKind(id, VertexValue)
		g.vs.SetFormula(id, nil)
		g.vs.SetLiteral(id, *def.Literal)
		g.MarkDirty(id)
		return id, nil
	case def.Cell != nil:
		ast = &Node{Kind: NodeCellRef, Cell: *def.Cell}
	case def.Range != nil:
		ast = &Node{Kind: NodeRangeRef, Range: *def.Range}
	case def.Formula != nil:
		ast = def.Formula
	default:
		return InvalidVertexID, fmt.Errorf("calcgraph: empty named definition for %q", name)
	}
	g.vs.SetKind(id, VertexFormulaScalar)
	g.vs.SetFormula(id, &Formula{AST: ast})
	g.connectReferences(id, sheet, ast)
	g.MarkDirty(id)
	return id, nil
}

// RemoveName drops a defined name; the underlying vertex collapses to
// Empty (its id is never reused, matching cell-vertex deletion semantics).
func (g *DependencyGraph) RemoveName(name string, scope NameScope) error {
	key := nameKey{name, scope}
	e, ok := g.names[key]
	if !ok {
		return fmt.Errorf("calcgraph: unknown name %q", name)
	}
	g.vs.ClearDependencies(e.vertex)
	g.vs.Clear(e.vertex)
	g.MarkDirty(e.vertex)
	delete(g.names, key)
	entries := g.namesByName[name]
	for i, x := range entries {
		if x == e {
			g.namesByName[name] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return nil
}

// MarkDirty transitively marks v and everything reachable via dependents
// (direct edges and stripe-indexed entries whose rectangle literally
// contains v's cell address) dirty. No-op if v is already dirty.
func (g *DependencyGraph) MarkDirty(v VertexID) {
	if _, ok := g.dirty[v]; ok {
		return
	}
	g.dirty[v] = struct{}{}
	g.vs.SetFlag(v, FlagDirty, true)

	queue := []VertexID{v}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, dep := range g.vs.Dependents(cur) {
			if _, ok := g.dirty[dep]; ok {
				continue
			}
			g.dirty[dep] = struct{}{}
			g.vs.SetFlag(dep, FlagDirty, true)
			queue = append(queue, dep)
		}

		coord := g.vs.Coord(cur)
		if !coord.Valid() {
			continue
		}
		sheet := g.vs.Sheet(cur)
		st, ok := g.stripes[sheet]
		if !ok {
			continue
		}
		row, col := int32(coord.Row()), int32(coord.Col())
		candidates := append(append([]VertexID{}, st.rowIdx.Query(row)...), st.colIdx.Query(col)...)
		for _, dep := range candidates {
			if _, ok := g.dirty[dep]; ok {
				continue
			}
			contained := false
			for _, r := range st.rects[dep] {
				if rangeContainsCell(r, row, col) {
					contained = true
					break
				}
			}
			if !contained {
				continue
			}
			g.dirty[dep] = struct{}{}
			g.vs.SetFlag(dep, FlagDirty, true)
			queue = append(queue, dep)
		}
	}
}

// DirtyVertices returns the current dirty set as a slice (unordered).
func (g *DependencyGraph) DirtyVertices() []VertexID {
	out := make([]VertexID, 0, len(g.dirty))
	for v := range g.dirty {
		out = append(out, v)
	}
	return out
}

// IsDirty reports whether v is in the dirty set.
func (g *DependencyGraph) IsDirty(v VertexID) bool {
	_, ok := g.dirty[v]
	return ok
}

// ClearDirtyFlags atomically clears the dirty bit/membership for ids; the
// only primitive allowed to do so, used by the apply step once a vertex's
// effect has been committed.
func (g *DependencyGraph) ClearDirtyFlags(ids []VertexID) {
	for _, id := range ids {
		delete(g.dirty, id)
		g.vs.SetFlag(id, FlagDirty, false)
	}
}

// BulkIngestSummary reports what a bulk ingest installed.
type BulkIngestSummary struct {
	CellCount    int
	FormulaCount int
}

type stagedValue struct {
	sheet    SheetID
	row, col int32
	lit      Literal
}

type stagedFormula struct {
	sheet    SheetID
	row, col int32
	formula  *Formula
}

// BulkIngestBuilder stages rows of values/formulas for one atomic install.
type BulkIngestBuilder struct {
	g        *DependencyGraph
	values   []stagedValue
	formulas []stagedFormula
}

// BeginBulkIngest starts a bulk-ingest builder against g.
func (g *DependencyGraph) BeginBulkIngest() *BulkIngestBuilder { return &BulkIngestBuilder{g: g} }

// AddSheet interns a sheet name, returning its id.
func (b *BulkIngestBuilder) AddSheet(name string) SheetID { return b.g.Sheet.IDFor(name) }

// AddValue stages one value cell.
func (b *BulkIngestBuilder) AddValue(sheet SheetID, row, col int32, lit Literal) {
	b.values = append(b.values, stagedValue{sheet, row, col, lit})
}

// AddFormula stages one formula cell.
func (b *BulkIngestBuilder) AddFormula(sheet SheetID, row, col int32, f *Formula) {
	b.formulas = append(b.formulas, stagedFormula{sheet, row, col, f})
}

// Finish atomically installs every staged cell and returns a summary.
func (b *BulkIngestBuilder) Finish() BulkIngestSummary {
	for _, v := range b.values {
		b.g.SetCellValue(v.sheet, v.row, v.col, v.lit)
	}
	for _, f := range b.formulas {
		b.g.SetCellFormula(f.sheet, f.row, f.col, f.formula)
	}
	return BulkIngestSummary{CellCount: len(b.values), FormulaCount: len(b.formulas)}
}
