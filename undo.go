package calcgraph

import "github.com/google/uuid"

// ActionRecord is one committed action's journal: every LogEntry recorded
// between its BeginAction marker and CommitAction.
type ActionRecord struct {
	ID      uuid.UUID
	Entries []LogEntry
}

// UndoEngine consumes committed action journals from the ChangeLog to
// produce inverse operations, implementing undo_action/redo_action as a
// plain two-stack history (new actions clear the redo stack, as usual).
type UndoEngine struct {
	undo []ActionRecord
	redo []ActionRecord
}

// NewUndoEngine creates an empty history.
func NewUndoEngine() *UndoEngine { return &UndoEngine{} }

// RecordAction pushes a freshly committed action onto the undo stack and
// clears the redo stack (a new edit invalidates any pending redo).
func (u *UndoEngine) RecordAction(id uuid.UUID, entries []LogEntry) {
	if len(entries) == 0 {
		return
	}
	u.undo = append(u.undo, ActionRecord{ID: id, Entries: entries})
	u.redo = nil
}

// CanUndo/CanRedo report whether a history entry is available.
func (u *UndoEngine) CanUndo() bool { return len(u.undo) > 0 }
func (u *UndoEngine) CanRedo() bool { return len(u.redo) > 0 }

// UndoAction replays the most recent action's entries in reverse,
// restoring each cell/name to its recorded "before" state, and moves the
// action to the redo stack.
func (u *UndoEngine) UndoAction(g *DependencyGraph) bool {
	if len(u.undo) == 0 {
		return false
	}
	n := len(u.undo) - 1
	rec := u.undo[n]
	u.undo = u.undo[:n]
	for i := len(rec.Entries) - 1; i >= 0; i-- {
		applyBefore(g, rec.Entries[i])
	}
	u.redo = append(u.redo, rec)
	return true
}

// RedoAction replays the most recently undone action's entries forward,
// restoring each cell/name to its recorded "after" state.
func (u *UndoEngine) RedoAction(g *DependencyGraph) bool {
	if len(u.redo) == 0 {
		return false
	}
	n := len(u.redo) - 1
	rec := u.redo[n]
	u.redo = u.redo[:n]
	for _, e := range rec.Entries {
		applyAfter(g, e)
	}
	u.undo = append(u.undo, rec)
	return true
}

func applyBefore(g *DependencyGraph, e LogEntry) {
	switch e.Kind {
	case EventSetCellValue, EventSetCellFormula, EventClearCell:
		restoreCellKind(g, e.Sheet, e.Row, e.Col, e.BeforeKind, e.BeforeLiteral, e.BeforeFormula)
	case EventDefineName:
		restoreNameKind(g, e.Name, e.Scope, e.BeforeKind, e.BeforeLiteral, e.BeforeFormula)
	case EventRemoveName:
		restoreNameKind(g, e.Name, e.Scope, e.BeforeKind, e.BeforeLiteral, e.BeforeFormula)
	case EventSetRowVisibility:
		restoreVisibility(g, e.Sheet, e.Row, e.BeforeKind)
	}
}

func applyAfter(g *DependencyGraph, e LogEntry) {
	switch e.Kind {
	case EventSetCellValue, EventSetCellFormula, EventClearCell:
		restoreCellKind(g, e.Sheet, e.Row, e.Col, e.AfterKind, e.AfterLiteral, e.AfterFormula)
	case EventDefineName:
		restoreNameKind(g, e.Name, e.Scope, e.AfterKind, e.AfterLiteral, e.AfterFormula)
	case EventRemoveName:
		restoreNameKind(g, e.Name, e.Scope, e.AfterKind, e.AfterLiteral, e.AfterFormula)
	case EventSetRowVisibility:
		restoreVisibility(g, e.Sheet, e.Row, e.AfterKind)
	}
}

func restoreCellKind(g *DependencyGraph, sheet SheetID, row, col int32, kind VertexKind, lit Literal, f *Formula) {
	switch kind {
	case VertexEmpty:
		g.ClearCell(sheet, row, col)
	case VertexFormulaScalar, VertexFormulaArray:
		g.SetCellFormula(sheet, row, col, f)
	default:
		g.SetCellValue(sheet, row, col, lit)
	}
}

func restoreNameKind(g *DependencyGraph, name string, scope NameScope, kind VertexKind, lit Literal, f *Formula) {
	if kind == VertexEmpty {
		g.RemoveName(name, scope)
		return
	}
	if kind == VertexFormulaScalar || kind == VertexFormulaArray {
		g.DefineName(name, NamedDefinition{Formula: f.AST}, scope)
		return
	}
	g.DefineName(name, NamedDefinition{Literal: &lit}, scope)
}

// restoreVisibility uses BeforeKind/AfterKind as a cheap boolean carrier
// (VertexEmpty == visible, VertexValue == hidden) since visibility state
// isn't itself a vertex kind; see Engine.SetManualRowHidden.
func restoreVisibility(g *DependencyGraph, sheet SheetID, row int32, marker VertexKind) {
	g.Visibility(sheet).SetManualHidden(row, marker == VertexValue)
}
