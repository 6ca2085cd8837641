package calcgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowVisibilityVersionBumpsOnlyOnChange(t *testing.T) {
	v := NewRowVisibility()
	assert.Equal(t, uint64(0), v.Version())

	v.SetManualHidden(3, true)
	assert.Equal(t, uint64(1), v.Version())

	v.SetManualHidden(3, true) // no-op: already hidden
	assert.Equal(t, uint64(1), v.Version())

	v.SetManualHidden(3, false)
	assert.Equal(t, uint64(2), v.Version())

	v.SetManualHidden(3, false) // no-op: already shown
	assert.Equal(t, uint64(2), v.Version())
}

func TestRowVisibilityModes(t *testing.T) {
	v := NewRowVisibility()
	v.SetManualHidden(1, true)
	v.SetFilterHidden(2, true)

	assert.True(t, v.Visible(1, VisibilityAll))
	assert.True(t, v.Visible(2, VisibilityAll))

	assert.False(t, v.Visible(1, VisibilityExcludeManual))
	assert.True(t, v.Visible(2, VisibilityExcludeManual))

	assert.True(t, v.Visible(1, VisibilityExcludeFiltered))
	assert.False(t, v.Visible(2, VisibilityExcludeFiltered))

	assert.False(t, v.Visible(1, VisibilityExcludeAnyHidden))
	assert.False(t, v.Visible(2, VisibilityExcludeAnyHidden))
	assert.True(t, v.Visible(0, VisibilityExcludeAnyHidden))
}

func TestRowVisibilityMask(t *testing.T) {
	v := NewRowVisibility()
	v.SetManualHidden(2, true)

	mask := v.Mask(0, 4, VisibilityExcludeManual)
	assert.Equal(t, DenseMask{true, true, false, true, true}, mask)
	assert.True(t, mask.Get(0, 0))
	assert.False(t, mask.Get(2, 0))
	assert.False(t, mask.Get(10, 0), "out of span reads as not-visible")
}

func TestRowVisibilityMaskEmptySpan(t *testing.T) {
	v := NewRowVisibility()
	assert.Nil(t, v.Mask(5, 4, VisibilityAll))
}
