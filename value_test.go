package calcgraph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiteralConstructorsAndKind(t *testing.T) {
	assert.True(t, Empty().IsEmpty())
	assert.Equal(t, LiteralInt, IntLiteral(5).Kind)
	assert.Equal(t, LiteralNumber, NumberLiteral(1.5).Kind)
	assert.Equal(t, LiteralText, TextLiteral("hi").Kind)
	assert.Equal(t, LiteralBoolean, BoolLiteral(true).Kind)
	assert.True(t, ErrorLiteral(ErrDiv0).IsError())
	assert.Equal(t, "#DIV/0!", ErrorLiteral(ErrDiv0).ErrKind.String())
}

func TestLiteralAsFloat64(t *testing.T) {
	f, ok := IntLiteral(3).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	f, ok = BoolLiteral(true).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)

	f, ok = BoolLiteral(false).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 0.0, f)

	_, ok = TextLiteral("x").AsFloat64()
	assert.False(t, ok)
}

func TestLiteralEqualAndLess(t *testing.T) {
	assert.True(t, NumberLiteral(1).Equal(NumberLiteral(1)))
	assert.False(t, NumberLiteral(1).Equal(NumberLiteral(2)))
	assert.True(t, NumberLiteral(1).Less(NumberLiteral(2)))
	assert.False(t, TextLiteral("a").Equal(NumberLiteral(1)))

	nan := NumberLiteral(math.NaN())
	assert.True(t, nan.Equal(NumberLiteral(math.NaN())), "NaN hashes/compares by bit pattern")
}

func TestLiteralArrayAtAndEqual(t *testing.T) {
	arr := ArrayLiteral(2, 2, []Literal{IntLiteral(1), IntLiteral(2), IntLiteral(3), IntLiteral(4)})
	assert.Equal(t, IntLiteral(3), arr.Array.At(1, 0))

	other := ArrayLiteral(2, 2, []Literal{IntLiteral(1), IntLiteral(2), IntLiteral(3), IntLiteral(4)})
	assert.True(t, arr.Equal(other))

	smaller := ArrayLiteral(1, 2, []Literal{IntLiteral(1), IntLiteral(2)})
	assert.False(t, arr.Equal(smaller))
}

func TestSortLiterals(t *testing.T) {
	vs := []Literal{NumberLiteral(3), NumberLiteral(1), NumberLiteral(2)}
	SortLiterals(vs)
	assert.Equal(t, []Literal{NumberLiteral(1), NumberLiteral(2), NumberLiteral(3)}, vs)
}

func TestLiteralString(t *testing.T) {
	assert.Equal(t, "", Empty().String())
	assert.Equal(t, "5", IntLiteral(5).String())
	assert.Equal(t, "TRUE", BoolLiteral(true).String())
	assert.Equal(t, "#NAME?", ErrorLiteral(ErrName).String())
}
