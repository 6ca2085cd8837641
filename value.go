package calcgraph

import (
	"fmt"
	"math"
	"sort"
)

// LiteralKind tags the variant held by a Literal.
type LiteralKind uint8

const (
	LiteralEmpty LiteralKind = iota
	LiteralInt
	LiteralNumber
	LiteralText
	LiteralBoolean
	LiteralDate
	LiteralDateTime
	LiteralErrorKind
	LiteralArray
)

// ErrorKind enumerates the error values evaluation can produce.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	ErrValue
	ErrName
	ErrNotImplemented
	ErrDiv0
	ErrNum
	ErrRef
	ErrSpill
	ErrCalc
	ErrCircular
)

// String renders the canonical "#XXX!" spelling of an ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrValue:
		return "#VALUE!"
	case ErrName:
		return "#NAME?"
	case ErrNotImplemented:
		return "#N/IMPL!"
	case ErrDiv0:
		return "#DIV/0!"
	case ErrNum:
		return "#NUM!"
	case ErrRef:
		return "#REF!"
	case ErrSpill:
		return "#SPILL!"
	case ErrCalc:
		return "#CALC!"
	case ErrCircular:
		return "#CIRCULAR!"
	default:
		return ""
	}
}

// Literal is the tagged union of scalar/array values that flow through
// the dependency graph: every cell and every intermediate formula result
// reduces to one of these.
type Literal struct {
	Kind    LiteralKind
	Num     float64
	Text    string
	Bool    bool
	ErrKind ErrorKind
	Array   *LiteralArray
}

// LiteralArray is a rectangular array result, row-major.
type LiteralArray struct {
	Rows, Cols int
	Values     []Literal
}

// At returns the literal at (row, col) within the array.
func (a *LiteralArray) At(row, col int) Literal {
	return a.Values[row*a.Cols+col]
}

// Empty returns the Empty literal.
func Empty() Literal { return Literal{Kind: LiteralEmpty} }

// IntLiteral constructs an Int literal.
func IntLiteral(v int64) Literal { return Literal{Kind: LiteralInt, Num: float64(v)} }

// NumberLiteral constructs a Number literal.
func NumberLiteral(v float64) Literal { return Literal{Kind: LiteralNumber, Num: v} }

// TextLiteral constructs a Text literal.
func TextLiteral(s string) Literal { return Literal{Kind: LiteralText, Text: s} }

// BoolLiteral constructs a Boolean literal.
func BoolLiteral(b bool) Literal { return Literal{Kind: LiteralBoolean, Bool: b} }

// DateLiteral constructs a Date literal from a date-system serial number.
func DateLiteral(serial float64) Literal { return Literal{Kind: LiteralDate, Num: serial} }

// DateTimeLiteral constructs a DateTime literal from a date-system serial number.
func DateTimeLiteral(serial float64) Literal { return Literal{Kind: LiteralDateTime, Num: serial} }

// ErrorLiteral constructs an error literal of the given kind.
func ErrorLiteral(kind ErrorKind) Literal { return Literal{Kind: LiteralErrorKind, ErrKind: kind} }

// ArrayLiteral constructs an Array literal.
func ArrayLiteral(rows, cols int, values []Literal) Literal {
	return Literal{Kind: LiteralArray, Array: &LiteralArray{Rows: rows, Cols: cols, Values: values}}
}

// IsError reports whether l is an error literal.
func (l Literal) IsError() bool { return l.Kind == LiteralErrorKind }

// IsEmpty reports whether l is the Empty literal.
func (l Literal) IsEmpty() bool { return l.Kind == LiteralEmpty }

// IsNumeric reports whether l holds a number-like scalar (Int, Number, Date, DateTime, Boolean).
func (l Literal) IsNumeric() bool {
	switch l.Kind {
	case LiteralInt, LiteralNumber, LiteralDate, LiteralDateTime, LiteralBoolean:
		return true
	default:
		return false
	}
}

// AsFloat64 coerces a numeric-like literal to float64. Non-numeric literals return (0, false).
func (l Literal) AsFloat64() (float64, bool) {
	switch l.Kind {
	case LiteralInt, LiteralNumber, LiteralDate, LiteralDateTime:
		return l.Num, true
	case LiteralBoolean:
		if l.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// String renders a literal the way a cell's displayed value would read.
func (l Literal) String() string {
	switch l.Kind {
	case LiteralEmpty:
		return ""
	case LiteralInt:
		return fmt.Sprintf("%d", int64(l.Num))
	case LiteralNumber, LiteralDate, LiteralDateTime:
		return fmt.Sprintf("%g", l.Num)
	case LiteralText:
		return l.Text
	case LiteralBoolean:
		if l.Bool {
			return "TRUE"
		}
		return "FALSE"
	case LiteralErrorKind:
		return l.ErrKind.String()
	case LiteralArray:
		if l.Array != nil && l.Array.Rows > 0 && l.Array.Cols > 0 {
			return l.Array.At(0, 0).String()
		}
		return ""
	default:
		return ""
	}
}

// Hash returns a deterministic hash of the literal; NaN numbers hash by
// bit pattern rather than by value, per spec.
func (l Literal) Hash() uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	mix := func(b byte) { h ^= uint64(b); h *= prime }
	mixU64 := func(v uint64) {
		for i := 0; i < 8; i++ {
			mix(byte(v >> (8 * i)))
		}
	}
	mix(byte(l.Kind))
	switch l.Kind {
	case LiteralInt, LiteralNumber, LiteralDate, LiteralDateTime:
		mixU64(math.Float64bits(l.Num))
	case LiteralText:
		for i := 0; i < len(l.Text); i++ {
			mix(l.Text[i])
		}
	case LiteralBoolean:
		if l.Bool {
			mix(1)
		} else {
			mix(0)
		}
	case LiteralErrorKind:
		mix(byte(l.ErrKind))
	case LiteralArray:
		if l.Array != nil {
			for _, v := range l.Array.Values {
				mixU64(v.Hash())
			}
		}
	}
	return h
}

// Equal compares two literals for value equality (NaN-by-bits for numbers).
func (l Literal) Equal(o Literal) bool {
	if l.Kind != o.Kind {
		return false
	}
	switch l.Kind {
	case LiteralInt, LiteralNumber, LiteralDate, LiteralDateTime:
		return math.Float64bits(l.Num) == math.Float64bits(o.Num)
	case LiteralText:
		return l.Text == o.Text
	case LiteralBoolean:
		return l.Bool == o.Bool
	case LiteralErrorKind:
		return l.ErrKind == o.ErrKind
	case LiteralArray:
		if l.Array == nil || o.Array == nil {
			return l.Array == o.Array
		}
		if l.Array.Rows != o.Array.Rows || l.Array.Cols != o.Array.Cols {
			return false
		}
		for i := range l.Array.Values {
			if !l.Array.Values[i].Equal(o.Array.Values[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Less defines a total order over literals, used for deterministic sort
// in criteria evaluation; order is by kind then by value.
func (l Literal) Less(o Literal) bool {
	if l.Kind != o.Kind {
		return l.Kind < o.Kind
	}
	switch l.Kind {
	case LiteralInt, LiteralNumber, LiteralDate, LiteralDateTime:
		return l.Num < o.Num
	case LiteralText:
		return l.Text < o.Text
	case LiteralBoolean:
		return !l.Bool && o.Bool
	case LiteralErrorKind:
		return l.ErrKind < o.ErrKind
	default:
		return false
	}
}

// SortLiterals sorts a slice of literals using Literal.Less.
func SortLiterals(vs []Literal) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })
}
