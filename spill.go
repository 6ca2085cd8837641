package calcgraph

// CellPos is a bare (row, col) pair, used by planned effects that must
// defer vertex allocation to the apply step (planning never mutates).
type CellPos struct{ Row, Col int32 }

// SpillManager projects a FormulaArray anchor's r×c result into neighbor
// cells, detects conflicts with existing content, and retires stale
// projections when an anchor's rectangle shrinks or disappears.
//
// Plan-phase methods (PlanCommit) are read-only: they consult current
// vertex state but never allocate vertices or mutate the graph. Only the
// EffectsPipeline's apply step, via applyCommit/applyClear, mutates
// anything — this is what lets planning run in parallel across a layer.
type SpillManager struct {
	g       *DependencyGraph
	targets map[VertexID][]VertexID // anchor -> currently owned projected vertex ids
}

// NewSpillManager creates a manager bound to g.
func NewSpillManager(g *DependencyGraph) *SpillManager {
	return &SpillManager{g: g, targets: make(map[VertexID][]VertexID)}
}

// PlanCommit computes the effect(s) for anchor evaluating to arr: either a
// single WriteCellEffect carrying #SPILL! (conflict), or a SpillCommitEffect
// describing the projection to install. arr may be a 1x1 "array" in which
// case the caller should prefer a plain WriteCellEffect instead — spilling
// machinery is for genuinely multi-cell results.
func (m *SpillManager) PlanCommit(anchor VertexID, arr *LiteralArray) Effect {
	sheet := m.g.vs.Sheet(anchor)
	coord := m.g.vs.Coord(anchor)
	originRow, originCol := int32(coord.Row()), int32(coord.Col())

	for r := 0; r < arr.Rows; r++ {
		for c := 0; c < arr.Cols; c++ {
			if r == 0 && c == 0 {
				continue
			}
			row, col := originRow+int32(r), originCol+int32(c)
			id, ok := m.g.CellVertex(sheet, row, col)
			if !ok {
				continue // never allocated: definitely free
			}
			if m.g.vs.HasFlag(id, FlagSpillProjected) {
				if m.g.vs.SpillAnchorOf(id) != anchor {
					return WriteCellEffect{Vertex: anchor, Literal: ErrorLiteral(ErrSpill)}
				}
				continue // our own prior projection: will be overwritten
			}
			if m.g.vs.Kind(id) != VertexEmpty {
				return WriteCellEffect{Vertex: anchor, Literal: ErrorLiteral(ErrSpill)}
			}
		}
	}

	targets := make([]CellPos, 0, arr.Rows*arr.Cols-1)
	values := make([]Literal, 0, arr.Rows*arr.Cols-1)
	for r := 0; r < arr.Rows; r++ {
		for c := 0; c < arr.Cols; c++ {
			if r == 0 && c == 0 {
				continue
			}
			targets = append(targets, CellPos{originRow + int32(r), originCol + int32(c)})
			values = append(values, arr.At(r, c))
		}
	}
	return SpillCommitEffect{
		Anchor:      anchor,
		Sheet:       sheet,
		AnchorValue: arr.At(0, 0),
		Targets:     targets,
		Values:      values,
	}
}

// PlanClear returns a SpillClearEffect for anchor, used when a formula that
// used to spill now evaluates to a scalar (or errors) and any prior
// projection must be retired.
func (m *SpillManager) PlanClear(anchor VertexID) Effect {
	return SpillClearEffect{Anchor: anchor}
}

// HasProjection reports whether anchor currently owns any projected cells.
func (m *SpillManager) HasProjection(anchor VertexID) bool {
	return len(m.targets[anchor]) > 0
}

// applyCommit installs a SpillCommitEffect: writes the anchor's own scalar,
// allocates/overwrites the target vertices, retires stale previous
// targets outside the new rectangle, and returns every vertex whose
// dependents must now be dirtied.
func (m *SpillManager) applyCommit(e SpillCommitEffect) []VertexID {
	m.g.vs.SetKind(e.Anchor, VertexFormulaArray)
	m.g.vs.SetLiteral(e.Anchor, e.AnchorValue)
	m.g.vs.SetFlag(e.Anchor, FlagSpillAnchor, true)

	newIDs := make([]VertexID, len(e.Targets))
	newSet := make(map[VertexID]struct{}, len(e.Targets))
	for i, pos := range e.Targets {
		id := m.g.ensureCellVertex(e.Sheet, pos.Row, pos.Col)
		m.g.vs.SetKind(id, VertexValue)
		m.g.vs.SetFormula(id, nil)
		m.g.vs.SetLiteral(id, e.Values[i])
		m.g.vs.SetFlag(id, FlagSpillProjected, true)
		m.g.vs.SetSpillAnchor(id, e.Anchor)
		newIDs[i] = id
		newSet[id] = struct{}{}
	}

	touched := append([]VertexID{e.Anchor}, newIDs...)
	for _, old := range m.targets[e.Anchor] {
		if _, stillOwned := newSet[old]; stillOwned {
			continue
		}
		m.retire(old)
		touched = append(touched, old)
	}
	m.targets[e.Anchor] = newIDs
	return touched
}

// applyClear retires every cell anchor currently owns.
func (m *SpillManager) applyClear(e SpillClearEffect) []VertexID {
	m.g.vs.SetFlag(e.Anchor, FlagSpillAnchor, false)
	old := m.targets[e.Anchor]
	for _, id := range old {
		m.retire(id)
	}
	delete(m.targets, e.Anchor)
	return old
}

func (m *SpillManager) retire(id VertexID) {
	m.g.vs.ClearDependencies(id)
	m.g.vs.Clear(id)
}
