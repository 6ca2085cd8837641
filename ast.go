package calcgraph

// NodeKind tags an AST node produced by the (external, out-of-scope)
// formula parser. calcgraph never constructs these from text; it only
// walks trees handed to it by set_cell_formula/define_name.
type NodeKind uint8

const (
	NodeLiteral NodeKind = iota
	NodeCellRef
	NodeRangeRef
	NodeNameRef
	NodeCall
	NodeUnary
	NodeBinary
)

// openEnded marks a row or column bound as unbounded (e.g. "A:A", "1:1").
const openEnded = -1

// CellRef addresses a single cell, optionally qualified with a sheet.
type CellRef struct {
	Sheet    SheetID
	HasSheet bool
	Row, Col int32
}

// RangeRef addresses a rectangle, optionally open-ended on any bound
// (R0/C0/R1/C1 == openEnded) to represent whole-row/column/infinite refs.
type RangeRef struct {
	Sheet                  SheetID
	HasSheet               bool
	R0, C0, R1, C1         int32
}

// IsBounded reports whether every bound of the range is finite.
func (r RangeRef) IsBounded() bool {
	return r.R0 != openEnded && r.C0 != openEnded && r.R1 != openEnded && r.C1 != openEnded
}

// CellCount returns the number of cells in a bounded range.
func (r RangeRef) CellCount() int {
	if !r.IsBounded() {
		return -1
	}
	return int(r.R1-r.R0+1) * int(r.C1-r.C0+1)
}

// Node is one AST node. The zero value of unused fields is ignored per Kind.
type Node struct {
	Kind NodeKind

	Lit Literal // NodeLiteral

	Cell  CellRef  // NodeCellRef
	Range RangeRef // NodeRangeRef

	Name string // NodeNameRef: the defined-name being referenced

	Func string  // NodeCall: "namespace.name" or bare "name"
	Args []*Node // NodeCall

	Op      string // NodeUnary / NodeBinary
	Operand *Node  // NodeUnary
	Left    *Node  // NodeBinary
	Right   *Node  // NodeBinary
}

// Formula pairs a parsed AST with the bookkeeping the graph needs: whether
// it is expected to reduce to an array (candidate for spilling).
type Formula struct {
	AST       *Node
	ArrayHint bool
}
