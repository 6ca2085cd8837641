package calcgraph

import "sort"

// interval is one entry of an IntervalTree: an inclusive [lo, hi] band
// over a single integer coordinate (a row band or a column band) and the
// vertex it indexes.
type interval struct {
	lo, hi  int32
	payload VertexID
}

// IntervalTree indexes dependents by row or column bands, for the
// open-ended/whole-row/whole-column references a bounded edge list can't
// represent cheaply. Ranges ≤ range_expansion_limit cells get direct
// per-cell edges instead (see DependencyGraph); this tree only carries
// the stripe entries for larger/unbounded references.
//
// Implemented as a slice kept sorted by lo with binary-search positioning
// on query, rather than a balanced tree: stripe counts are bounded by
// workbook size / stripe_height-width, so a sorted slice is both simpler
// and fast enough, and no interval-tree library appears anywhere in the
// example pack to justify more machinery.
type IntervalTree struct {
	items  []interval
	sorted bool
}

// NewIntervalTree creates an empty tree.
func NewIntervalTree() *IntervalTree { return &IntervalTree{} }

// Insert adds a [lo, hi] band for payload.
func (t *IntervalTree) Insert(lo, hi int32, payload VertexID) {
	t.items = append(t.items, interval{lo, hi, payload})
	t.sorted = false
}

// Remove deletes the matching [lo, hi]/payload entry, if present.
func (t *IntervalTree) Remove(lo, hi int32, payload VertexID) {
	for i, it := range t.items {
		if it.lo == lo && it.hi == hi && it.payload == payload {
			last := len(t.items) - 1
			t.items[i] = t.items[last]
			t.items = t.items[:last]
			t.sorted = false
			return
		}
	}
}

// BulkBuildPoints replaces the tree's contents with one degenerate
// [p, p] band per point, for payload. Used when seeding a stripe index
// from a large set of known rows/columns in one pass.
func (t *IntervalTree) BulkBuildPoints(points []int32, payload VertexID) {
	t.items = t.items[:0]
	for _, p := range points {
		t.items = append(t.items, interval{p, p, payload})
	}
	t.sort()
}

func (t *IntervalTree) sort() {
	sort.Slice(t.items, func(i, j int) bool { return t.items[i].lo < t.items[j].lo })
	t.sorted = true
}

// Query returns every payload whose band covers point.
func (t *IntervalTree) Query(point int32) []VertexID {
	if !t.sorted {
		t.sort()
	}
	// Binary search for the first item whose lo could still cover point;
	// since bands can be wide, we must scan all items with lo <= point.
	idx := sort.Search(len(t.items), func(i int) bool { return t.items[i].lo > point })
	var out []VertexID
	for i := 0; i < idx; i++ {
		if t.items[i].hi >= point {
			out = append(out, t.items[i].payload)
		}
	}
	return out
}

// QueryInterval returns every payload whose band intersects [lo, hi].
func (t *IntervalTree) QueryInterval(lo, hi int32) []VertexID {
	if !t.sorted {
		t.sort()
	}
	idx := sort.Search(len(t.items), func(i int) bool { return t.items[i].lo > hi })
	var out []VertexID
	for i := 0; i < idx; i++ {
		if t.items[i].hi >= lo {
			out = append(out, t.items[i].payload)
		}
	}
	return out
}

// Len returns the number of indexed bands.
func (t *IntervalTree) Len() int { return len(t.items) }
