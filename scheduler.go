package calcgraph

import "sort"

// Layer is one parallel-evaluable batch: every vertex in a layer depends
// only on vertices in strictly earlier layers (within the dirty universe).
type Layer struct {
	Vertices []VertexID
}

// Schedule is the scheduler's output: layers to evaluate in order, plus
// any strongly-connected components of size > 1 (or self-loops) found
// within the dirty universe — these can never be ordered and are reported
// so the evaluator can assign #CIRCULAR! errors instead.
type Schedule struct {
	Layers []Layer
	Cycles [][]VertexID
}

// scheduler computes Tarjan SCCs restricted to a dirty-vertex universe,
// collapses each SCC to a single node, and layers the resulting DAG with
// Kahn's algorithm. Deterministic: every tie (SCC iteration order, layer
// membership order) breaks on ascending VertexID, so two runs over the
// same dirty set always produce the same Schedule.
type scheduler struct {
	vs      *VertexStore
	in      map[VertexID]struct{} // the dirty universe
	index   map[VertexID]int
	low     map[VertexID]int
	onStack map[VertexID]bool
	stack   []VertexID
	counter int
	sccs    [][]VertexID
	sccOf   map[VertexID]int
}

// ComputeSchedule computes an evaluation schedule for exactly the vertices in dirty.
func ComputeSchedule(vs *VertexStore, dirty []VertexID) Schedule {
	s := &scheduler{
		vs:      vs,
		in:      make(map[VertexID]struct{}, len(dirty)),
		index:   make(map[VertexID]int),
		low:     make(map[VertexID]int),
		onStack: make(map[VertexID]bool),
		sccOf:   make(map[VertexID]int),
	}
	for _, v := range dirty {
		s.in[v] = struct{}{}
	}

	ordered := append([]VertexID{}, dirty...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	for _, v := range ordered {
		if _, seen := s.index[v]; !seen {
			s.strongConnect(v)
		}
	}

	return s.layer()
}

func (s *scheduler) strongConnect(v VertexID) {
	s.index[v] = s.counter
	s.low[v] = s.counter
	s.counter++
	s.stack = append(s.stack, v)
	s.onStack[v] = true

	deps := append([]VertexID{}, s.vs.Dependencies(v)...)
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	for _, w := range deps {
		if _, ok := s.in[w]; !ok {
			continue // outside the dirty universe: treat as a stable input
		}
		if _, seen := s.index[w]; !seen {
			s.strongConnect(w)
			if s.low[w] < s.low[v] {
				s.low[v] = s.low[w]
			}
		} else if s.onStack[w] {
			if s.index[w] < s.low[v] {
				s.low[v] = s.index[w]
			}
		}
	}

	if s.low[v] == s.index[v] {
		var comp []VertexID
		for {
			n := len(s.stack) - 1
			w := s.stack[n]
			s.stack = s.stack[:n]
			s.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
		id := len(s.sccs)
		s.sccs = append(s.sccs, comp)
		for _, w := range comp {
			s.sccOf[w] = id
		}
	}
}

// layer runs Kahn's algorithm over the SCC-condensation graph, then
// expands each layered SCC node back into its member vertex ids.
func (s *scheduler) layer() Schedule {
	n := len(s.sccs)
	indeg := make([]int, n)
	succ := make([][]int, n) // sccSucc[i] = scc ids that i has an edge into
	seen := make([]map[int]bool, n)
	for i := range seen {
		seen[i] = make(map[int]bool)
	}

	for v := range s.in {
		from := s.sccOf[v]
		for _, w := range s.vs.Dependencies(v) {
			if _, ok := s.in[w]; !ok {
				continue
			}
			to := s.sccOf[w]
			if to == from || seen[from][to] {
				continue
			}
			seen[from][to] = true
			succ[to] = append(succ[to], from) // to must be evaluated before from
			indeg[from]++
		}
	}

	var cycles [][]VertexID
	cyclic := make([]bool, n)
	for i, comp := range s.sccs {
		if len(comp) > 1 {
			cycles = append(cycles, comp)
			cyclic[i] = true
			continue
		}
		v := comp[0]
		for _, w := range s.vs.Dependencies(v) {
			if w == v { // self-loop
				cycles = append(cycles, []VertexID{v})
				cyclic[i] = true
				break
			}
		}
	}

	var layers []Layer
	remaining := n
	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	processed := make([]bool, n)

	for remaining > 0 && len(ready) > 0 {
		sort.Ints(ready)
		var verts []VertexID
		for _, i := range ready {
			if cyclic[i] {
				continue // cyclic components never enter a layer
			}
			verts = append(verts, s.sccs[i]...)
		}
		sort.Slice(verts, func(i, j int) bool { return verts[i] < verts[j] })
		if len(verts) > 0 {
			layers = append(layers, Layer{Vertices: verts})
		}

		var next []int
		for _, i := range ready {
			processed[i] = true
			remaining--
			for _, j := range succ[i] {
				indeg[j]--
				if indeg[j] == 0 {
					next = append(next, j)
				}
			}
		}
		ready = next
	}

	return Schedule{Layers: layers, Cycles: cycles}
}
