package calcgraph

import "math"

// RegisterBuiltins installs a minimal demo function library: enough to
// drive the engine's end-to-end scenarios (linear chains, dynamic-array
// spill, SUBTOTAL/AGGREGATE visibility). This is explicitly not a general
// function library — that is out of scope (§4.14).
func RegisterBuiltins(r *FunctionRegistry) {
	r.Register("", "SUM", CapPure|CapReducer, builtinSum)
	r.Register("", "SEQUENCE", CapPure, builtinSequence)
	r.Register("", "SUBTOTAL", CapPure|CapReducer, builtinSubtotal)
	r.Register("", "AGGREGATE", CapPure|CapReducer, builtinAggregate)
}

// flatViewFor returns the flattened numeric view of view's rectangle,
// consulting ctx.Flats (keyed by reference fingerprint) before re-walking
// the columnar store — a range referenced by several reducers within the
// same pass is only flattened once.
func flatViewFor(ctx *EvalContext, view *RangeView, sheet SheetID, r RangeRef) FlatView {
	key := RangeFingerprint(sheet, r)
	if ctx.Flats != nil {
		if flat, ok := ctx.Flats.Get(key); ok {
			if ctx.Metrics != nil {
				ctx.Metrics.incFlatCacheHit()
			}
			return flat
		}
		if ctx.Metrics != nil {
			ctx.Metrics.incFlatCacheMiss()
		}
	}

	cols := int(r.C1 - r.C0 + 1)
	rows := int(r.R1 - r.R0 + 1)
	numeric := make([]float64, rows*cols)
	valid := make([]bool, rows*cols)
	view.ForEach(func(row, col int32, lit Literal) {
		idx := int(row-r.R0)*cols + int(col-r.C0)
		if f, ok := lit.AsFloat64(); ok {
			numeric[idx] = f
			valid[idx] = true
		}
	})
	flat := FlatView{Kind: FlatNumeric, Rows: rows, Cols: cols, Numeric: numeric, Valid: valid}

	if ctx.Flats != nil {
		ctx.Flats.Insert(key, flat)
	}
	if ctx.Metrics != nil {
		ctx.Metrics.incFlatViewsBuilt()
	}
	return flat
}

// maskFor returns the visible-row mask for [lo,hi] under mode, consulting
// ctx.Masks (keyed by MaskFingerprint, which embeds the RowVisibility
// generation so a stale entry is simply never looked up again).
func maskFor(ctx *EvalContext, sheet SheetID, lo, hi int32, mode VisibilityMode) DenseMask {
	key := MaskFingerprint(sheet, lo, hi, mode, ctx.Visibility.Version())
	if ctx.Masks != nil {
		if mask, ok := ctx.Masks.Get(key); ok {
			if ctx.Metrics != nil {
				ctx.Metrics.incMaskCacheHit()
			}
			return mask
		}
		if ctx.Metrics != nil {
			ctx.Metrics.incMaskCacheMiss()
		}
	}
	mask := ctx.Visibility.Mask(lo, hi, mode)
	if ctx.Masks != nil {
		ctx.Masks.Put(key, mask)
	}
	if ctx.Metrics != nil {
		ctx.Metrics.incMasksBuilt()
	}
	return mask
}

func sumRange(ctx *EvalContext, a ArgHandle, mode VisibilityMode) (float64, error) {
	view, sheet, r, err := a.Range()
	if err != nil {
		return 0, err
	}

	var mask DenseMask
	if mode != VisibilityAll && ctx.Visibility != nil {
		mask = maskFor(ctx, sheet, r.R0, r.R1, mode)
	}

	flat := flatViewFor(ctx, view, sheet, r)
	var total float64
	for i, f := range flat.Numeric {
		if !flat.Valid[i] {
			continue
		}
		row := r.R0 + int32(i/flat.Cols)
		if mask != nil && !mask.Get(row, r.R0) {
			continue
		}
		total += f
	}
	return total, nil
}

func builtinSum(ctx *EvalContext) (Literal, error) {
	var total float64
	for _, arg := range ctx.Args {
		if arg.Node().Kind == NodeRangeRef {
			s, err := sumRange(ctx, arg, VisibilityAll)
			if err != nil {
				return Empty(), err
			}
			total += s
			continue
		}
		lit, err := arg.Scalar()
		if err != nil {
			return Empty(), err
		}
		if lit.IsError() {
			return lit, nil
		}
		if f, ok := lit.AsFloat64(); ok {
			total += f
		}
	}
	return NumberLiteral(total), nil
}

// builtinSequence implements SEQUENCE(rows, [cols], [start], [step]),
// returning a row-major rectangular array — the canonical spill source.
func builtinSequence(ctx *EvalContext) (Literal, error) {
	if len(ctx.Args) == 0 {
		return ErrorLiteral(ErrValue), nil
	}
	intArg := func(i int, def float64) (float64, error) {
		if i >= len(ctx.Args) {
			return def, nil
		}
		lit, err := ctx.Args[i].Scalar()
		if err != nil {
			return 0, err
		}
		f, ok := lit.AsFloat64()
		if !ok {
			return 0, nil
		}
		return f, nil
	}

	rowsF, err := intArg(0, 1)
	if err != nil {
		return Empty(), err
	}
	colsF, err := intArg(1, 1)
	if err != nil {
		return Empty(), err
	}
	start, err := intArg(2, 1)
	if err != nil {
		return Empty(), err
	}
	step, err := intArg(3, 1)
	if err != nil {
		return Empty(), err
	}

	rows, cols := int(rowsF), int(colsF)
	if rows <= 0 || cols <= 0 {
		return ErrorLiteral(ErrNum), nil
	}
	values := make([]Literal, rows*cols)
	v := start
	for i := range values {
		values[i] = NumberLiteral(v)
		v += step
	}
	return ArrayLiteral(rows, cols, values), nil
}

func subtotalMode(funcNum int) (VisibilityMode, int) {
	if funcNum >= 100 {
		return VisibilityExcludeAnyHidden, funcNum - 100
	}
	return VisibilityExcludeFiltered, funcNum
}

// builtinSubtotal implements SUBTOTAL(function_num, range): only function 9
// (SUM) is implemented, which is sufficient to exercise the visibility modes.
func builtinSubtotal(ctx *EvalContext) (Literal, error) {
	if len(ctx.Args) < 2 {
		return ErrorLiteral(ErrValue), nil
	}
	numLit, err := ctx.Args[0].Scalar()
	if err != nil {
		return Empty(), err
	}
	n, _ := numLit.AsFloat64()
	mode, base := subtotalMode(int(n))
	if base != 9 {
		return ErrorLiteral(ErrNotImplemented), nil
	}
	total, err := sumRange(ctx, ctx.Args[1], mode)
	if err != nil {
		return Empty(), err
	}
	return NumberLiteral(total), nil
}

// builtinAggregate implements AGGREGATE(function_num, options, range):
// options 5/7 ignore hidden rows (any-hidden); only function 9 (SUM) is
// implemented.
func builtinAggregate(ctx *EvalContext) (Literal, error) {
	if len(ctx.Args) < 3 {
		return ErrorLiteral(ErrValue), nil
	}
	numLit, err := ctx.Args[0].Scalar()
	if err != nil {
		return Empty(), err
	}
	optLit, err := ctx.Args[1].Scalar()
	if err != nil {
		return Empty(), err
	}
	n, _ := numLit.AsFloat64()
	opt, _ := optLit.AsFloat64()
	if int(n) != 9 {
		return ErrorLiteral(ErrNotImplemented), nil
	}
	mode := VisibilityAll
	switch int(opt) {
	case 5, 7:
		mode = VisibilityExcludeAnyHidden
	}
	total, err := sumRange(ctx, ctx.Args[2], mode)
	if err != nil {
		return Empty(), err
	}
	return NumberLiteral(total), nil
}

// applyBinaryOp evaluates the small arithmetic/comparison/concat operator
// set the evaluator supports inline (NodeBinary never goes through the
// function registry).
func applyBinaryOp(op string, left, right Literal) Literal {
	if left.IsError() {
		return left
	}
	if right.IsError() {
		return right
	}
	switch op {
	case "&":
		return TextLiteral(left.String() + right.String())
	case "=":
		return BoolLiteral(left.Equal(right))
	case "<>":
		return BoolLiteral(!left.Equal(right))
	case "<":
		return BoolLiteral(left.Less(right))
	case ">":
		return BoolLiteral(right.Less(left))
	case "<=":
		return BoolLiteral(!right.Less(left))
	case ">=":
		return BoolLiteral(!left.Less(right))
	}

	lf, lok := left.AsFloat64()
	rf, rok := right.AsFloat64()
	if !lok || !rok {
		return ErrorLiteral(ErrValue)
	}
	switch op {
	case "+":
		return NumberLiteral(lf + rf)
	case "-":
		return NumberLiteral(lf - rf)
	case "*":
		return NumberLiteral(lf * rf)
	case "/":
		if rf == 0 {
			return ErrorLiteral(ErrDiv0)
		}
		return NumberLiteral(lf / rf)
	case "^":
		return NumberLiteral(math.Pow(lf, rf))
	default:
		return ErrorLiteral(ErrNotImplemented)
	}
}

func applyUnaryOp(op string, operand Literal) Literal {
	if operand.IsError() {
		return operand
	}
	switch op {
	case "-":
		f, ok := operand.AsFloat64()
		if !ok {
			return ErrorLiteral(ErrValue)
		}
		return NumberLiteral(-f)
	case "+":
		return operand
	case "%":
		f, ok := operand.AsFloat64()
		if !ok {
			return ErrorLiteral(ErrValue)
		}
		return NumberLiteral(f / 100)
	default:
		return ErrorLiteral(ErrNotImplemented)
	}
}
