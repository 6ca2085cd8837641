// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package calcgraph

import (
	"context"
	"errors"
	"sync"
)

// EvalConfig carries the concurrency knobs from spec §6/§7 that govern how
// a layer's Plan step fans out.
type EvalConfig struct {
	EnableParallel bool
	MaxThreads     int
}

// EvalResult summarizes one evaluate_all/evaluate_until/evaluate_cell run.
type EvalResult struct {
	CellsEvaluated int
	ErrorCount     int
	CyclesDetected int
}

// Evaluator drives the plan-in-parallel/apply-sequentially recalculation
// loop: build a recalc universe, ask the scheduler for a Schedule, then
// for each layer plan every vertex's effects (optionally in parallel) and
// apply them in one deterministic sequential pass.
type Evaluator struct {
	g       *DependencyGraph
	cols    *ColumnarStore
	spill   *SpillManager
	effects *EffectsPipeline
	fns     *FunctionRegistry
	cfg     EvalConfig

	masks   *MaskCache
	flats   *FlatCache
	metrics *EvalMetrics
}

// NewEvaluator wires an evaluator over the given components.
func NewEvaluator(g *DependencyGraph, cols *ColumnarStore, spill *SpillManager, effects *EffectsPipeline, fns *FunctionRegistry, cfg EvalConfig) *Evaluator {
	return &Evaluator{g: g, cols: cols, spill: spill, effects: effects, fns: fns, cfg: cfg}
}

// WithCaches attaches the pass-scoped mask/flat caches and metrics counters
// (cache.go, metrics.go) that reducer functions consult through
// EvalContext; called once by Engine after construction.
func (e *Evaluator) WithCaches(masks *MaskCache, flats *FlatCache, metrics *EvalMetrics) *Evaluator {
	e.masks, e.flats, e.metrics = masks, flats, metrics
	return e
}

// EvaluateAll recalculates the entire current dirty set.
func (e *Evaluator) EvaluateAll(ctx context.Context) (EvalResult, error) {
	return e.run(ctx, e.g.DirtyVertices())
}

// EvaluateUntil recalculates only the dirty ancestry needed to make every
// vertex in targets current; dirty vertices unreachable from targets are
// left dirty for a later pass.
func (e *Evaluator) EvaluateUntil(ctx context.Context, targets []VertexID) (EvalResult, error) {
	return e.run(ctx, e.universeFor(targets))
}

// EvaluateCell dirties (sheet,row,col) if it is not already dirty, then
// evaluates exactly the universe needed to bring it current.
func (e *Evaluator) EvaluateCell(ctx context.Context, sheet SheetID, row, col int32) (EvalResult, error) {
	id, ok := e.g.CellVertex(sheet, row, col)
	if !ok {
		return EvalResult{}, nil
	}
	if !e.g.IsDirty(id) {
		e.g.MarkDirty(id)
	}
	return e.run(ctx, e.universeFor([]VertexID{id}))
}

func (e *Evaluator) universeFor(targets []VertexID) []VertexID {
	visited := make(map[VertexID]struct{})
	var walk func(v VertexID)
	walk = func(v VertexID) {
		if _, ok := visited[v]; ok {
			return
		}
		if !e.g.IsDirty(v) {
			return
		}
		visited[v] = struct{}{}
		for _, dep := range e.g.vs.Dependencies(v) {
			walk(dep)
		}
	}
	for _, t := range targets {
		walk(t)
	}
	out := make([]VertexID, 0, len(visited))
	for v := range visited {
		out = append(out, v)
	}
	return out
}

func (e *Evaluator) run(ctx context.Context, universe []VertexID) (EvalResult, error) {
	var result EvalResult
	if len(universe) == 0 {
		return result, nil
	}
	// Flat/mask caches are pass-scoped: neither survives a graph mutation,
	// so each evaluation pass starts from an empty cache rather than risk
	// serving a stale flattened range or mask from a prior pass.
	if e.flats != nil {
		e.flats.Clear()
	}
	if e.masks != nil {
		e.masks.Clear()
	}
	sched := ComputeSchedule(e.g.vs, universe)
	result.CyclesDetected = len(sched.Cycles)

	for _, cycle := range sched.Cycles {
		batch := make([]VertexEffects, 0, len(cycle))
		for _, v := range cycle {
			batch = append(batch, VertexEffects{Vertex: v, Effects: []Effect{
				WriteCellEffect{Vertex: v, Literal: ErrorLiteral(ErrCircular)},
			}})
			result.ErrorCount++
		}
		e.effects.Apply(batch)
		result.CellsEvaluated += len(cycle)
	}

	for _, layer := range sched.Layers {
		if err := ctx.Err(); err != nil {
			return result, translateCtxErr(err)
		}
		batch, err := e.planLayer(ctx, layer)
		if err != nil {
			return result, err
		}
		for _, ve := range batch {
			for _, eff := range ve.Effects {
				if wc, ok := eff.(WriteCellEffect); ok && wc.Literal.IsError() {
					result.ErrorCount++
				}
			}
		}
		e.effects.Apply(batch)
		result.CellsEvaluated += len(layer.Vertices)
	}

	return result, nil
}

func (e *Evaluator) planLayer(ctx context.Context, layer Layer) ([]VertexEffects, error) {
	out := make([]VertexEffects, len(layer.Vertices))

	if !e.cfg.EnableParallel || len(layer.Vertices) <= 1 {
		for i, v := range layer.Vertices {
			if err := ctx.Err(); err != nil {
				return nil, translateCtxErr(err)
			}
			out[i] = VertexEffects{Vertex: v, Effects: e.planVertex(v)}
		}
		return out, nil
	}

	maxThreads := e.cfg.MaxThreads
	if maxThreads <= 0 || maxThreads > len(layer.Vertices) {
		maxThreads = len(layer.Vertices)
	}
	sem := make(chan struct{}, maxThreads)
	var wg sync.WaitGroup
	for i, v := range layer.Vertices {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v VertexID) {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			out[i] = VertexEffects{Vertex: v, Effects: e.planVertex(v)}
		}(i, v)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, translateCtxErr(err)
	}
	return out, nil
}

func translateCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrEvaluationTimeout
	}
	return ErrEvaluationCancelled
}

// planVertex computes one vertex's effect batch; read-only over graph
// state set by earlier (already-applied) layers.
func (e *Evaluator) planVertex(v VertexID) []Effect {
	switch e.g.vs.Kind(v) {
	case VertexInfiniteRange:
		return nil
	case VertexEmpty:
		// A cleared cell must still mirror Empty() into the columnar store,
		// or a prior write would linger there after clear_cell (or a spill
		// retirement) collapses the vertex.
		return []Effect{WriteCellEffect{Vertex: v, Literal: Empty()}}
	case VertexValue:
		// A dirty plain-value vertex still needs its write mirrored into the
		// columnar store; the effects pipeline is the only path that mutates it.
		return []Effect{WriteCellEffect{Vertex: v, Literal: e.g.vs.Literal(v)}}
	case VertexFormulaScalar:
		f := e.g.vs.FormulaOf(v)
		lit := e.evalNode(v, f.AST)
		return []Effect{WriteCellEffect{Vertex: v, Literal: scalarOf(lit)}}
	case VertexFormulaArray:
		f := e.g.vs.FormulaOf(v)
		lit := e.evalNode(v, f.AST)
		if lit.Kind == LiteralArray && (lit.Array.Rows > 1 || lit.Array.Cols > 1) {
			return []Effect{e.spill.PlanCommit(v, lit.Array)}
		}
		if e.g.vs.HasFlag(v, FlagSpillAnchor) && e.spill.HasProjection(v) {
			return []Effect{e.spill.PlanClear(v), WriteCellEffect{Vertex: v, Literal: scalarOf(lit)}}
		}
		return []Effect{WriteCellEffect{Vertex: v, Literal: scalarOf(lit)}}
	default:
		return nil
	}
}

func scalarOf(lit Literal) Literal {
	if lit.Kind == LiteralArray {
		return lit.Array.At(0, 0)
	}
	return lit
}

// evalNode recursively evaluates an AST node in the context of vertex self
// (whose sheet anchors unqualified references).
func (e *Evaluator) evalNode(self VertexID, node *Node) Literal {
	if node == nil {
		return Empty()
	}
	sheet := e.g.vs.Sheet(self)
	switch node.Kind {
	case NodeLiteral:
		return node.Lit
	case NodeCellRef:
		refSheet := sheet
		if node.Cell.HasSheet {
			refSheet = node.Cell.Sheet
		}
		id, ok := e.g.CellVertex(refSheet, node.Cell.Row, node.Cell.Col)
		if !ok {
			return Empty()
		}
		return e.g.vs.Literal(id)
	case NodeRangeRef:
		return ErrorLiteral(ErrValue)
	case NodeNameRef:
		entry, ok := e.g.resolveName(node.Name, sheet)
		if !ok {
			return ErrorLiteral(ErrName)
		}
		return e.g.vs.Literal(entry.vertex)
	case NodeUnary:
		return applyUnaryOp(node.Op, e.evalNode(self, node.Operand))
	case NodeBinary:
		return applyBinaryOp(node.Op, e.evalNode(self, node.Left), e.evalNode(self, node.Right))
	case NodeCall:
		fn, ok := e.fns.Get(node.Func)
		if !ok {
			return ErrorLiteral(ErrName)
		}
		args := make([]ArgHandle, len(node.Args))
		for i, a := range node.Args {
			args[i] = ArgHandle{node: a, sheet: sheet, g: e.g, cols: e.cols}
		}
		ctx := &EvalContext{
			Sheet: sheet, Row: int32(e.g.vs.Coord(self).Row()), Col: int32(e.g.vs.Coord(self).Col()),
			Args: args, Visibility: e.g.Visibility(sheet), Mode: VisibilityAll,
			Masks: e.masks, Flats: e.flats, Metrics: e.metrics,
		}
		lit, err := fn.Call(ctx)
		if err != nil {
			return ErrorLiteral(ErrValue)
		}
		return lit
	default:
		return ErrorLiteral(ErrNotImplemented)
	}
}
