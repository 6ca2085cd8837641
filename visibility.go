package calcgraph

// VisibilityMode selects which hidden-row classes SUBTOTAL/AGGREGATE-style
// reducers must skip over.
type VisibilityMode uint8

const (
	// VisibilityAll ignores hidden state entirely (plain SUM-style reducers).
	VisibilityAll VisibilityMode = iota
	// VisibilityExcludeManual skips manually hidden rows only.
	VisibilityExcludeManual
	// VisibilityExcludeFiltered skips filter-hidden rows only.
	VisibilityExcludeFiltered
	// VisibilityExcludeAnyHidden skips rows hidden either way (func_num >= 100
	// SUBTOTAL forms, AGGREGATE options 5/7).
	VisibilityExcludeAnyHidden
)

// DenseMask is a per-row visibility bit vector over a contiguous row span,
// 0-indexed from the span's lo row.
type DenseMask []bool

// Get reports the mask bit for row (absolute, 0-based); rows outside the
// mask's span read as false.
func (m DenseMask) Get(row, lo int32) bool {
	i := row - lo
	if i < 0 || int(i) >= len(m) {
		return false
	}
	return m[i]
}

// RowVisibility tracks manual-hide and filter-hide state for one sheet's
// rows, plus a version counter so dependent caches can detect staleness
// without rescanning every row.
type RowVisibility struct {
	manualHidden   map[int32]bool
	filteredHidden map[int32]bool
	version        uint64
}

// NewRowVisibility creates an empty (fully visible) tracker.
func NewRowVisibility() *RowVisibility {
	return &RowVisibility{manualHidden: make(map[int32]bool), filteredHidden: make(map[int32]bool)}
}

// Version returns the current generation counter; it increments on every
// SetManualHidden/SetFilterHidden call that actually changes state.
func (v *RowVisibility) Version() uint64 { return v.version }

// SetManualHidden marks row as manually hidden/shown.
func (v *RowVisibility) SetManualHidden(row int32, hidden bool) {
	if hidden {
		if v.manualHidden[row] {
			return
		}
		v.manualHidden[row] = true
	} else {
		if !v.manualHidden[row] {
			return
		}
		delete(v.manualHidden, row)
	}
	v.version++
}

// SetFilterHidden marks row as hidden/shown by an autofilter.
func (v *RowVisibility) SetFilterHidden(row int32, hidden bool) {
	if hidden {
		if v.filteredHidden[row] {
			return
		}
		v.filteredHidden[row] = true
	} else {
		if !v.filteredHidden[row] {
			return
		}
		delete(v.filteredHidden, row)
	}
	v.version++
}

// IsManualHidden reports manual-hide state.
func (v *RowVisibility) IsManualHidden(row int32) bool { return v.manualHidden[row] }

// IsFilterHidden reports filter-hide state.
func (v *RowVisibility) IsFilterHidden(row int32) bool { return v.filteredHidden[row] }

// Visible reports whether row passes the given mode.
func (v *RowVisibility) Visible(row int32, mode VisibilityMode) bool {
	switch mode {
	case VisibilityAll:
		return true
	case VisibilityExcludeManual:
		return !v.manualHidden[row]
	case VisibilityExcludeFiltered:
		return !v.filteredHidden[row]
	case VisibilityExcludeAnyHidden:
		return !v.manualHidden[row] && !v.filteredHidden[row]
	default:
		return true
	}
}

// Mask materializes a DenseMask over the inclusive [lo, hi] row span for mode.
func (v *RowVisibility) Mask(lo, hi int32, mode VisibilityMode) DenseMask {
	if hi < lo {
		return nil
	}
	mask := make(DenseMask, hi-lo+1)
	for row := lo; row <= hi; row++ {
		mask[row-lo] = v.Visible(row, mode)
	}
	return mask
}
