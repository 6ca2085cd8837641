package calcgraph

import (
	"sync"

	"github.com/google/uuid"
)

// EventKind tags one semantic event recorded in the ChangeLog.
type EventKind uint8

const (
	EventSetCellValue EventKind = iota
	EventSetCellFormula
	EventClearCell
	EventDefineName
	EventRemoveName
	EventSetRowVisibility
	EventSpillCommit
	EventSpillClear
)

// LogEntry is one recorded event, carrying enough before/after state for
// UndoEngine to synthesize an inverse operation.
type LogEntry struct {
	Seq    uint64
	Kind   EventKind
	Sheet  SheetID
	Row    int32
	Col    int32
	Name   string
	Scope  NameScope

	BeforeLiteral Literal
	BeforeFormula *Formula
	BeforeKind    VertexKind
	AfterLiteral  Literal
	AfterFormula  *Formula
	AfterKind     VertexKind
}

// cloneFormula snapshots a Formula for the change log. The AST itself is
// never mutated in place once set_cell_formula/define_name hand it to the
// graph (calcgraph only ever walks it), so sharing the *Node pointer across
// snapshots is safe and a shallow struct copy is all undo/redo needs.
func cloneFormula(f *Formula) *Formula {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

// ChangeLog is an append-only, purely observational record of semantic
// events: evaluation never reads it, only the editor (to append) and
// UndoEngine (to replay in reverse) do. Actions nest via a depth counter;
// on failure the caller truncates back to the action's start marker.
type ChangeLog struct {
	mu      sync.Mutex
	seq     uint64
	entries []LogEntry
	markers []int // stack of indices where each open action began
}

// NewChangeLog creates an empty log.
func NewChangeLog() *ChangeLog { return &ChangeLog{} }

// Append records one event and returns its sequence number.
func (c *ChangeLog) Append(e LogEntry) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	e.Seq = c.seq
	c.entries = append(c.entries, e)
	return c.seq
}

// BeginAction pushes a new action marker at the log's current length,
// incrementing the nesting depth, and returns a unique action id.
func (c *ChangeLog) BeginAction() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers = append(c.markers, len(c.entries))
	return uuid.New()
}

// Depth returns the current action nesting depth.
func (c *ChangeLog) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.markers)
}

// CommitAction pops the innermost action marker, returning every entry
// recorded since it began (in recorded order) for UndoEngine to journal.
func (c *ChangeLog) CommitAction() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.markers) == 0 {
		return nil
	}
	n := len(c.markers) - 1
	start := c.markers[n]
	c.markers = c.markers[:n]
	out := append([]LogEntry{}, c.entries[start:]...)
	return out
}

// AbortAction pops the innermost action marker and truncates the log back
// to it, discarding everything recorded since.
func (c *ChangeLog) AbortAction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.markers) == 0 {
		return
	}
	n := len(c.markers) - 1
	start := c.markers[n]
	c.markers = c.markers[:n]
	c.entries = c.entries[:start]
}

// Len returns the total number of recorded entries.
func (c *ChangeLog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
