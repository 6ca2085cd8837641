package calcgraph

// VertexID is a dense, arena-assigned index; all cross-references in the
// graph are plain integers rather than owning pointers, which keeps the
// (naturally cyclic, through dependents/stripes) graph trivially
// representable without weak-reference gymnastics.
type VertexID uint32

// InvalidVertexID is returned when a lookup misses.
const InvalidVertexID VertexID = ^VertexID(0)

// VertexKind is the closed tagged union of vertex shapes.
type VertexKind uint8

const (
	VertexEmpty VertexKind = iota
	VertexValue
	VertexFormulaScalar
	VertexFormulaArray
	VertexInfiniteRange
)

// Vertex flag bits, packed into one byte per vertex.
const (
	FlagDirty byte = 1 << iota
	FlagVolatile
	FlagSpillAnchor
	FlagSpillProjected // this cell is a synthesized projection of some anchor
	FlagArray          // FormulaArray candidate for spilling
)

// VertexStore is a structure-of-arrays arena: parallel slices indexed by
// VertexID, plus a shared edge arena for dependency/dependent lists.
type VertexStore struct {
	coords   []PackedCoord
	sheets   []SheetID
	kinds    []VertexKind
	flags    []byte
	literals []Literal // value-ref storage, one slot per vertex (zero value = Empty)
	formulas []*Formula // formula-ref storage, nil when kind isn't a formula
	spillOf  []VertexID // for FlagSpillProjected vertices: which anchor owns this cell

	edges *edgeArena
}

// NewVertexStore creates an empty arena.
func NewVertexStore() *VertexStore {
	return &VertexStore{edges: newEdgeArena()}
}

// Alloc appends a new vertex and returns its id. O(1).
func (s *VertexStore) Alloc(kind VertexKind, sheet SheetID, coord PackedCoord) VertexID {
	id := VertexID(len(s.kinds))
	s.coords = append(s.coords, coord)
	s.sheets = append(s.sheets, sheet)
	s.kinds = append(s.kinds, kind)
	s.flags = append(s.flags, 0)
	s.literals = append(s.literals, Empty())
	s.formulas = append(s.formulas, nil)
	s.spillOf = append(s.spillOf, InvalidVertexID)
	s.edges.ensure(id)
	return id
}

// Len returns the number of vertex slots ever allocated.
func (s *VertexStore) Len() int { return len(s.kinds) }

// Kind returns the vertex kind.
func (s *VertexStore) Kind(id VertexID) VertexKind { return s.kinds[id] }

// Sheet returns the vertex's sheet id.
func (s *VertexStore) Sheet(id VertexID) SheetID { return s.sheets[id] }

// Coord returns the vertex's packed coordinate (InvalidCoord for
// InfiniteRange/named-range vertices not keyed by a single cell).
func (s *VertexStore) Coord(id VertexID) PackedCoord { return s.coords[id] }

// Literal returns the vertex's cached scalar/value.
func (s *VertexStore) Literal(id VertexID) Literal { return s.literals[id] }

// SetLiteral stores a cached literal for id.
func (s *VertexStore) SetLiteral(id VertexID, lit Literal) { s.literals[id] = lit }

// FormulaOf returns the vertex's AST, or nil for non-formula kinds.
func (s *VertexStore) FormulaOf(id VertexID) *Formula { return s.formulas[id] }

// SetFormula attaches an AST to a formula vertex.
func (s *VertexStore) SetFormula(id VertexID, f *Formula) { s.formulas[id] = f }

// SpillAnchorOf returns the anchor vertex owning a projected cell, or
// InvalidVertexID if id is not a spill projection.
func (s *VertexStore) SpillAnchorOf(id VertexID) VertexID { return s.spillOf[id] }

// SetSpillAnchor records which anchor owns a projected cell (InvalidVertexID to clear).
func (s *VertexStore) SetSpillAnchor(id, anchor VertexID) { s.spillOf[id] = anchor }

// SetKind updates the vertex's kind tag in place, preserving edges.
func (s *VertexStore) SetKind(id VertexID, kind VertexKind) { s.kinds[id] = kind }

// HasFlag reports whether flag is set on id.
func (s *VertexStore) HasFlag(id VertexID, flag byte) bool { return s.flags[id]&flag != 0 }

// SetFlag sets or clears flag on id.
func (s *VertexStore) SetFlag(id VertexID, flag byte, on bool) {
	if on {
		s.flags[id] |= flag
	} else {
		s.flags[id] &^= flag
	}
}

// Clear collapses id to Empty: drops its literal/formula/spill-owner and
// kind, but keeps edges — callers must explicitly rewire dependencies.
func (s *VertexStore) Clear(id VertexID) {
	s.kinds[id] = VertexEmpty
	s.literals[id] = Empty()
	s.formulas[id] = nil
	s.spillOf[id] = InvalidVertexID
	s.flags[id] &^= FlagArray | FlagSpillAnchor | FlagSpillProjected
}

// Dependencies returns the vertices id reads (its out-edges).
func (s *VertexStore) Dependencies(id VertexID) []VertexID { return s.edges.out[id] }

// Dependents returns the vertices that read id (its in-edges).
func (s *VertexStore) Dependents(id VertexID) []VertexID { return s.edges.in[id] }

// AddEdge records that u depends on (reads) v: an out-edge u->v and the
// matching in-edge on v. Deduplicated per endpoint.
func (s *VertexStore) AddEdge(u, v VertexID) { s.edges.add(u, v) }

// ClearDependencies removes every out-edge of u (and the matching
// in-edge entries on each dependency), leaving u's dependents untouched.
func (s *VertexStore) ClearDependencies(u VertexID) { s.edges.clearOut(u) }

// edgeArena is the shared cross-reference store backing dependency and
// dependent lists: plain VertexID slices indexed by vertex id, rather
// than owning pointers, so the naturally-cyclic graph needs no weak refs.
type edgeArena struct {
	out [][]VertexID // dependencies: out[u] = vertices u reads
	in  [][]VertexID // dependents:   in[v]  = vertices that read v
}

func newEdgeArena() *edgeArena { return &edgeArena{} }

func (a *edgeArena) ensure(id VertexID) {
	for VertexID(len(a.out)) <= id {
		a.out = append(a.out, nil)
		a.in = append(a.in, nil)
	}
}

func (a *edgeArena) add(u, v VertexID) {
	a.ensure(u)
	a.ensure(v)
	for _, x := range a.out[u] {
		if x == v {
			return // already present: per-endpoint dedupe
		}
	}
	a.out[u] = append(a.out[u], v)
	a.in[v] = append(a.in[v], u)
}

// removeValue swap-removes target from list, returning the shortened slice.
func removeValue(list []VertexID, target VertexID) []VertexID {
	for i, x := range list {
		if x == target {
			last := len(list) - 1
			list[i] = list[last]
			return list[:last]
		}
	}
	return list
}

func (a *edgeArena) clearOut(u VertexID) {
	a.ensure(u)
	for _, v := range a.out[u] {
		a.in[v] = removeValue(a.in[v], u)
	}
	a.out[u] = a.out[u][:0]
}
