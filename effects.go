package calcgraph

import "sort"

// Effect is one planned mutation: a cell write, a spill commit, or a spill
// clear. Planning produces effects; only EffectsPipeline.Apply performs them.
type Effect interface{ isEffect() }

// WriteCellEffect writes a scalar literal to an existing vertex.
type WriteCellEffect struct {
	Vertex  VertexID
	Literal Literal
}

// SpillCommitEffect installs a FormulaArray anchor's projection. Targets
// are bare cell positions (not vertex ids) because planning never
// allocates vertices; the apply step resolves/creates them.
type SpillCommitEffect struct {
	Anchor      VertexID
	Sheet       SheetID
	AnchorValue Literal
	Targets     []CellPos
	Values      []Literal
}

// SpillClearEffect retires every cell anchor currently owns.
type SpillClearEffect struct {
	Anchor VertexID
}

func (WriteCellEffect) isEffect()   {}
func (SpillCommitEffect) isEffect() {}
func (SpillClearEffect) isEffect()  {}

// VertexEffects is one vertex's planned effect batch, in the order they
// must be applied for that vertex.
type VertexEffects struct {
	Vertex  VertexID
	Effects []Effect
}

// EffectsPipeline applies a layer's planned effects sequentially, in
// deterministic order (sorted by vertex id, then effect index within that
// vertex's batch), and is the only code path that mutates vertex values,
// spill projections, or the columnar store.
type EffectsPipeline struct {
	g    *DependencyGraph
	spl  *SpillManager
	cols *ColumnarStore // may be nil: columnar mirroring is optional
}

// NewEffectsPipeline creates a pipeline bound to g's graph, spill manager,
// and (optionally) a columnar store kept in sync on every write.
func NewEffectsPipeline(g *DependencyGraph, spl *SpillManager, cols *ColumnarStore) *EffectsPipeline {
	return &EffectsPipeline{g: g, spl: spl, cols: cols}
}

// Apply performs every effect in batch in deterministic order, clears the
// dirty bit of each planned vertex, and marks newly affected dependents
// (targets of a fresh spill projection, or cells retired from a shrunk
// one) dirty so a following layer picks them up.
func (p *EffectsPipeline) Apply(batch []VertexEffects) {
	sort.Slice(batch, func(i, j int) bool { return batch[i].Vertex < batch[j].Vertex })

	planned := make([]VertexID, 0, len(batch))
	retiredNow := make(map[VertexID]struct{})
	for _, ve := range batch {
		planned = append(planned, ve.Vertex)
		for _, eff := range ve.Effects {
			switch e := eff.(type) {
			case WriteCellEffect:
				lit := e.Literal
				if _, gone := retiredNow[e.Vertex]; gone {
					// Planned while still a projection; retired earlier in this batch.
					lit = Empty()
				}
				p.g.vs.SetLiteral(e.Vertex, lit)
				if p.cols != nil {
					p.mirror(e.Vertex, lit)
				}
			case SpillCommitEffect:
				touched := p.spl.applyCommit(e)
				if p.cols != nil {
					for _, id := range touched {
						p.mirror(id, p.g.vs.Literal(id))
					}
				}
				for _, id := range touched {
					if id == e.Anchor {
						continue
					}
					if p.g.vs.Kind(id) == VertexEmpty {
						retiredNow[id] = struct{}{}
					}
					p.g.MarkDirty(id)
				}
			case SpillClearEffect:
				retired := p.spl.applyClear(e)
				for _, id := range retired {
					retiredNow[id] = struct{}{}
					if p.cols != nil {
						p.mirror(id, Empty())
					}
					p.g.MarkDirty(id)
				}
			}
		}
	}
	p.g.ClearDirtyFlags(planned)
}

func (p *EffectsPipeline) mirror(id VertexID, lit Literal) {
	coord := p.g.vs.Coord(id)
	if !coord.Valid() {
		return
	}
	sheet := p.g.vs.Sheet(id)
	p.cols.Write(sheet, int32(coord.Row()), int32(coord.Col()), lit)
}
