package calcgraph

import (
	"context"
	"log"
)

// Engine is the top-level facade wiring every component together: the
// dependency graph, columnar store, spill manager, effects pipeline,
// evaluator, function registry, change log, and undo engine. It is the
// only type most callers construct directly.
type Engine struct {
	cfg *Config

	Graph    *DependencyGraph
	Columns  *ColumnarStore
	Spill    *SpillManager
	Effects  *EffectsPipeline
	Eval     *Evaluator
	Registry *FunctionRegistry
	Log      *ChangeLog
	Undo     *UndoEngine
	Masks    *MaskCache
	Flats    *FlatCache
	Metrics  *EvalMetrics

	inAction bool
}

// NewEngine constructs a fully wired Engine from cfg (use DefaultConfig()
// or NewConfig(opts...) to build one).
func NewEngine(cfg *Config) *Engine {
	graph := NewDependencyGraph(GraphConfig{
		RangeExpansionLimit: cfg.RangeExpansionLimit,
		StripeHeight:        cfg.StripeHeight,
		StripeWidth:         cfg.StripeWidth,
		EnableBlockStripes:  cfg.EnableBlockStripes,
	})
	cols := NewColumnarStore(cfg.MaxOverlayMemoryBytes, cfg.ArrowCanonicalValues)
	spill := NewSpillManager(graph)
	effects := NewEffectsPipeline(graph, spill, cols)
	fns := NewFunctionRegistry()
	RegisterBuiltins(fns)
	evaluator := NewEvaluator(graph, cols, spill, effects, fns, EvalConfig{
		EnableParallel: cfg.EnableParallel,
		MaxThreads:     cfg.MaxThreads,
	})
	masks := NewMaskCache(cfg.MaskCacheEntries)
	flats := NewFlatCache(cfg.FlatCacheBytes)
	metrics := NewEvalMetrics()
	evaluator.WithCaches(masks, flats, metrics)

	return &Engine{
		cfg:      cfg,
		Graph:    graph,
		Columns:  cols,
		Spill:    spill,
		Effects:  effects,
		Eval:     evaluator,
		Registry: fns,
		Log:      NewChangeLog(),
		Undo:     NewUndoEngine(),
		Masks:    masks,
		Flats:    flats,
		Metrics:  metrics,
	}
}

// AddSheet interns a sheet name, returning its id.
func (e *Engine) AddSheet(name string) SheetID { return e.Graph.Sheet.IDFor(name) }

type cellSnapshot struct {
	kind    VertexKind
	lit     Literal
	formula *Formula
}

func (e *Engine) snapshotCell(sheet SheetID, row, col int32) cellSnapshot {
	id, ok := e.Graph.CellVertex(sheet, row, col)
	if !ok {
		return cellSnapshot{kind: VertexEmpty, lit: Empty()}
	}
	return cellSnapshot{
		kind:    e.Graph.vs.Kind(id),
		lit:     e.Graph.vs.Literal(id),
		formula: cloneFormula(e.Graph.vs.FormulaOf(id)),
	}
}

// SetCellValue upserts a literal cell, logging the change for undo.
func (e *Engine) SetCellValue(sheet SheetID, row, col int32, lit Literal) (VertexID, error) {
	before := e.snapshotCell(sheet, row, col)
	id, err := e.Graph.SetCellValue(sheet, row, col, lit)
	if err != nil {
		return id, err
	}
	e.Log.Append(LogEntry{
		Kind: EventSetCellValue, Sheet: sheet, Row: row, Col: col,
		BeforeLiteral: before.lit, BeforeFormula: before.formula, BeforeKind: before.kind,
		AfterLiteral: lit, AfterKind: VertexValue,
	})
	return id, nil
}

// SetCellFormula upserts a formula cell, logging the change for undo.
func (e *Engine) SetCellFormula(sheet SheetID, row, col int32, f *Formula) (VertexID, error) {
	before := e.snapshotCell(sheet, row, col)
	id, err := e.Graph.SetCellFormula(sheet, row, col, f)
	if err != nil {
		return id, err
	}
	kind := VertexFormulaScalar
	if f.ArrayHint {
		kind = VertexFormulaArray
	}
	e.Log.Append(LogEntry{
		Kind: EventSetCellFormula, Sheet: sheet, Row: row, Col: col,
		BeforeLiteral: before.lit, BeforeFormula: before.formula, BeforeKind: before.kind,
		AfterFormula: cloneFormula(f), AfterKind: kind,
	})
	return id, nil
}

// ClearCell collapses a cell to Empty, logging the change for undo.
func (e *Engine) ClearCell(sheet SheetID, row, col int32) error {
	before := e.snapshotCell(sheet, row, col)
	if err := e.Graph.ClearCell(sheet, row, col); err != nil {
		return err
	}
	e.Log.Append(LogEntry{
		Kind: EventClearCell, Sheet: sheet, Row: row, Col: col,
		BeforeLiteral: before.lit, BeforeFormula: before.formula, BeforeKind: before.kind,
		AfterKind: VertexEmpty,
	})
	return nil
}

func (e *Engine) snapshotName(name string, scope NameScope) (VertexKind, Literal, *Formula) {
	entry, ok := e.Graph.names[nameKey{name, scope}]
	if !ok {
		return VertexEmpty, Empty(), nil
	}
	id := entry.vertex
	return e.Graph.vs.Kind(id), e.Graph.vs.Literal(id), cloneFormula(e.Graph.vs.FormulaOf(id))
}

// DefineName installs/updates a named range, logging the change for undo.
func (e *Engine) DefineName(name string, def NamedDefinition, scope NameScope) (VertexID, error) {
	beforeKind, beforeLit, beforeFormula := e.snapshotName(name, scope)
	id, err := e.Graph.DefineName(name, def, scope)
	if err != nil {
		return id, err
	}
	afterKind, afterLit, afterFormula := e.snapshotName(name, scope)
	e.Log.Append(LogEntry{
		Kind: EventDefineName, Name: name, Scope: scope,
		BeforeKind: beforeKind, BeforeLiteral: beforeLit, BeforeFormula: beforeFormula,
		AfterKind: afterKind, AfterLiteral: afterLit, AfterFormula: afterFormula,
	})
	return id, nil
}

// RemoveName drops a named range, logging the change for undo.
func (e *Engine) RemoveName(name string, scope NameScope) error {
	beforeKind, beforeLit, beforeFormula := e.snapshotName(name, scope)
	if err := e.Graph.RemoveName(name, scope); err != nil {
		return err
	}
	e.Log.Append(LogEntry{
		Kind: EventRemoveName, Name: name, Scope: scope,
		BeforeKind: beforeKind, BeforeLiteral: beforeLit, BeforeFormula: beforeFormula,
		AfterKind: VertexEmpty,
	})
	return nil
}

// SetManualRowHidden toggles a row's manual-hide state, logging for undo.
func (e *Engine) SetManualRowHidden(sheet SheetID, row int32, hidden bool) {
	rv := e.Graph.Visibility(sheet)
	before := rv.IsManualHidden(row)
	rv.SetManualHidden(row, hidden)
	e.Log.Append(LogEntry{
		Kind: EventSetRowVisibility, Sheet: sheet, Row: row,
		BeforeKind: boolKind(before), AfterKind: boolKind(hidden),
	})
}

func boolKind(b bool) VertexKind {
	if b {
		return VertexValue
	}
	return VertexEmpty
}

// BeginBulkIngest starts a bulk-ingest builder (not undo-logged: bulk
// loads are treated as an initial/batch operation outside action scope).
func (e *Engine) BeginBulkIngest() *BulkIngestBuilder { return e.Graph.BeginBulkIngest() }

// Action runs fn as one undo-able compound action identified by label (the
// action's name, quoted in the TransactionError returned when fn fails).
// Nested Action calls are rejected:
// only a single level of transaction scope is supported.
func (e *Engine) Action(label string, fn func() error) error {
	return e.ActionWithLogger(label, func(*log.Logger) error { return fn() })
}

// ActionWithLogger is Action, additionally handing fn the engine's logger.
func (e *Engine) ActionWithLogger(label string, fn func(*log.Logger) error) error {
	if e.inAction {
		return &TransactionError{Reason: "nested action", Cause: ErrNestedAction}
	}
	e.inAction = true
	defer func() { e.inAction = false }()

	actionID := e.Log.BeginAction()
	if err := fn(e.cfg.Logger); err != nil {
		e.Log.AbortAction()
		return &TransactionError{Reason: "action body failed: " + label, Cause: err}
	}
	entries := e.Log.CommitAction()
	e.Undo.RecordAction(actionID, entries)
	return nil
}

// UndoAction/RedoAction walk the undo history; they report whether there
// was anything to undo/redo.
func (e *Engine) UndoAction() bool { return e.Undo.UndoAction(e.Graph) }
func (e *Engine) RedoAction() bool { return e.Undo.RedoAction(e.Graph) }

// EvaluateAll/EvaluateUntil/EvaluateCell delegate to the Evaluator.
func (e *Engine) EvaluateAll(ctx context.Context) (EvalResult, error) { return e.Eval.EvaluateAll(ctx) }
func (e *Engine) EvaluateUntil(ctx context.Context, targets []VertexID) (EvalResult, error) {
	return e.Eval.EvaluateUntil(ctx, targets)
}
func (e *Engine) EvaluateCell(ctx context.Context, sheet SheetID, row, col int32) (EvalResult, error) {
	return e.Eval.EvaluateCell(ctx, sheet, row, col)
}

// GetCellValue reads one cell's current value: under Arrow-canonical mode
// it reads the columnar store exclusively (the graph value cache is never
// consulted); otherwise it reads the graph value cache directly.
func (e *Engine) GetCellValue(sheet SheetID, row, col int32) Literal {
	if e.cfg.ArrowCanonicalValues {
		return e.Columns.Read(sheet, row, col)
	}
	id, ok := e.Graph.CellVertex(sheet, row, col)
	if !ok {
		return Empty()
	}
	return e.Graph.vs.Literal(id)
}

// ReadRange opens a columnar range view; both read modes serve range reads
// through the columnar store, which the effects pipeline always mirrors.
func (e *Engine) ReadRange(sheet SheetID, r0, c0, r1, c1 int32) *RangeView {
	return e.Columns.RangeView(sheet, r0, c0, r1, c1)
}
