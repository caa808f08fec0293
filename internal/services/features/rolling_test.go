package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingMeanRequiresFullWindow(t *testing.T) {
	got := RollingMean([]float64{1, 2, 3, 4}, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-12)
	assert.InDelta(t, 3.0, got[3], 1e-12)
}

func TestRollingMeanSkipsWindowsWithGaps(t *testing.T) {
	got := RollingMean([]float64{1, math.NaN(), 3, 4, 5}, 2)
	assert.True(t, math.IsNaN(got[1]))
	assert.True(t, math.IsNaN(got[2]))
	assert.InDelta(t, 3.5, got[3], 1e-12)
}

func TestRollingStdIsSampleStd(t *testing.T) {
	got := RollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	assert.InDelta(t, 2.138089935, got[7], 1e-9)
}

func TestRollingZScoreUndefinedOnFlatWindow(t *testing.T) {
	got := RollingZScore([]float64{1, 1, 1, 1}, 3)
	for _, v := range got {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRollingZScoreIsCausal(t *testing.T) {
	x := []float64{1, 3, 2, 5, 4, 6, 8, 7}
	full := RollingZScore(x, 3)
	// appending future values must not change past outputs
	more := RollingZScore(append(append([]float64(nil), x...), 100, -100), 3)
	for i := range full {
		if math.IsNaN(full[i]) {
			assert.True(t, math.IsNaN(more[i]))
			continue
		}
		assert.InDelta(t, full[i], more[i], 1e-12)
	}
}

func TestPctChangeAndDiff(t *testing.T) {
	pc := PctChange([]float64{100, 110, 0, 5}, 1)
	assert.True(t, math.IsNaN(pc[0]))
	assert.InDelta(t, 0.1, pc[1], 1e-12)
	assert.InDelta(t, -1.0, pc[2], 1e-12)
	assert.True(t, math.IsNaN(pc[3]), "division by zero is undefined")

	d := Diff([]float64{1, 4, 9}, 1)
	assert.True(t, math.IsNaN(d[0]))
	assert.Equal(t, []float64{3, 5}, d[1:])
}

func TestShift(t *testing.T) {
	back := Shift([]float64{1, 2, 3}, 1)
	assert.True(t, math.IsNaN(back[0]))
	assert.Equal(t, []float64{1, 2}, back[1:])

	fwd := Shift([]float64{1, 2, 3}, -1)
	assert.Equal(t, []float64{2, 3}, fwd[:2])
	assert.True(t, math.IsNaN(fwd[2]))
}

func TestFFillKeepsLeadingGap(t *testing.T) {
	got := FFill([]float64{math.NaN(), 1, math.NaN(), math.NaN(), 2})
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, []float64{1, 1, 1, 2}, got[1:])
}

func TestEWMAdjustedMatchesWeightedMean(t *testing.T) {
	x := []float64{1, 2, 3}
	got := EWMAdjusted(x, 0.5, 1)
	// weights 0.25, 0.5, 1
	want := (0.25*1 + 0.5*2 + 1*3) / 1.75
	assert.InDelta(t, want, got[2], 1e-12)

	gated := EWMAdjusted(x, 0.5, 3)
	assert.True(t, math.IsNaN(gated[1]))
	assert.False(t, math.IsNaN(gated[2]))
}

func TestEWMRecursive(t *testing.T) {
	got := EWM([]float64{math.NaN(), 10, 20}, 0.5)
	require.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 10.0, got[1])
	assert.Equal(t, 15.0, got[2])
}

func TestClipAndSigmoid(t *testing.T) {
	got := Clip([]float64{-1, 0.5, 2, math.NaN()}, 0, 1.2)
	assert.Equal(t, []float64{0, 0.5, 1.2}, got[:3])
	assert.True(t, math.IsNaN(got[3]))
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
}

func TestRollingZScoreUndefinedOnForwardFilledLevel(t *testing.T) {
	// a policy rate held for a full window must not produce rounding noise
	x := []float64{5.33, 5.33, 5.33, 5.33, 5.58}
	got := RollingZScore(x, 4)
	assert.True(t, math.IsNaN(got[3]))
	assert.InDelta(t, 1.5, got[4], 1e-9)
	assert.InDelta(t, 0.0, RollingStd(x, 4)[3], 1e-15)
}
