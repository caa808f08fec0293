package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func days(n int) []time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestNewFrameRejectsUnorderedIndex(t *testing.T) {
	idx := days(3)
	idx[2] = idx[1]
	_, err := NewFrame(idx)
	assert.ErrorIs(t, err, ErrUnorderedIndex)
}

func TestFrameSetAndLookup(t *testing.T) {
	f, err := NewFrame(days(3))
	require.NoError(t, err)

	require.NoError(t, f.Set("a", []float64{1, math.NaN(), 3}))
	assert.ErrorIs(t, f.Set("b", []float64{1}), ErrLengthMismatch)
	require.NoError(t, f.SetLabels("l", []string{"x", "y", "z"}))

	assert.True(t, f.Has("a"))
	assert.False(t, f.Has("l"), "labels are not numeric columns")
	assert.Equal(t, []string{"a", "l"}, f.Names())

	_, ok := f.Value("a", 1)
	assert.False(t, ok)
	assert.Equal(t, 7.0, f.ValueOr("a", 1, 7))
	assert.Equal(t, 3.0, f.ValueOr("a", 2, 7))
	assert.Equal(t, []float64{5, 5, 5}, f.ColumnOr("missing", 5))

	row := f.Row(1)
	assert.Nil(t, row["a"])
	assert.Equal(t, "y", row["l"])
}

func TestFrameCloneTailSelectAreIndependent(t *testing.T) {
	f, err := NewFrame(days(4))
	require.NoError(t, err)
	f.MustSet("a", []float64{1, 2, 3, 4})

	c := f.Clone()
	c.MustSet("a", []float64{9, 9, 9, 9})
	v, _ := f.Value("a", 0)
	assert.Equal(t, 1.0, v)

	tail := f.Tail(2)
	assert.Equal(t, 2, tail.Len())
	col, _ := tail.Column("a")
	assert.Equal(t, []float64{3, 4}, col)

	sel := f.Select([]int{0, 3})
	col, _ = sel.Column("a")
	assert.Equal(t, []float64{1, 4}, col)
	assert.Equal(t, f.Index()[3], sel.Index()[1])
}

func TestRecordsRoundTrip(t *testing.T) {
	f, err := NewFrame(days(2))
	require.NoError(t, err)
	f.MustSet(ColOpen, []float64{1, 2})
	f.MustSet(ColHigh, []float64{1.5, 2.5})
	f.MustSet(ColLow, []float64{0.5, 1.5})
	f.MustSet(ColClose, []float64{1.2, 2.2})
	f.MustSet(ColVolume, []float64{100.4, math.NaN()})
	f.MustSet(ColSMA200, []float64{math.NaN(), math.NaN()})
	require.NoError(t, f.SetLabels(ColRegime, []string{"Expansion", "Stress"}))

	recs := RecordsFromFrame("^GSPC", f)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(100), *recs[0].Volume)
	assert.Nil(t, recs[1].Volume)
	assert.Nil(t, recs[0].SMA200)
	assert.Nil(t, recs[0].RSI14, "absent columns persist as null")
	assert.Equal(t, "Stress", *recs[1].Regime)

	// reversed and duplicated input is ordered and deduplicated
	dup := recs[1]
	back, err := FrameFromRecords([]MarketRecord{recs[1], recs[0], dup})
	require.NoError(t, err)
	assert.Equal(t, 2, back.Len())
	cls, _ := back.Column(ColClose)
	assert.Equal(t, []float64{1.2, 2.2}, cls)
	labels, _ := back.Labels(ColRegime)
	assert.Equal(t, []string{"Expansion", "Stress"}, labels)
}

func TestRegimeProbsLabelTies(t *testing.T) {
	assert.Equal(t, RegimeExpansion, UniformProbs().Label())
	assert.Equal(t, RegimeSlowdown, RegimeProbs{0.2, 0.4, 0.4}.Label())
	assert.Equal(t, "P_Stress", RegimeStress.ProbColumn())
	assert.InDelta(t, 1.0, UniformProbs().Sum(), 1e-12)
}
