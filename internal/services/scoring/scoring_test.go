package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/domain/repository"
	"MacroPulse/internal/services/features"
)

type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (m *memStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

func (m *memStore) Save(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = blob
	m.saves++
	return nil
}

func priceFrame(t *testing.T, n int) *models.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	price := 100.0
	for i := range candles {
		price *= 1 + 0.01*rng.NormFloat64() + 0.0003
		candles[i] = models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Open:   price,
			High:   price * (1 + 0.005*rng.Float64()),
			Low:    price * (1 - 0.005*rng.Float64()),
			Close:  price,
			Volume: 1e6,
		}
	}
	f, err := models.FrameFromCandles(candles)
	require.NoError(t, err)
	f, err = features.AddIndicators(f)
	require.NoError(t, err)
	return f
}

func TestPurgedSplitsNeverLeak(t *testing.T) {
	splits := PurgedSplits(100, 20, 5, 2)
	require.NotEmpty(t, splits)
	for _, s := range splits {
		train, test := s.TrainIdx(), s.TestIdx()
		assert.Len(t, train, 20)
		assert.Len(t, test, 5)
		assert.Less(t, train[len(train)-1], test[0]-1)
		assert.GreaterOrEqual(t, train[0], 0)
	}
	for i := 1; i < len(splits); i++ {
		assert.Equal(t, splits[i-1].TestEnd, splits[i].TestStart, "test blocks are consecutive")
	}
	assert.Equal(t, 22, splits[0].TestStart)
}

func TestPurgedSplitsDefaults(t *testing.T) {
	assert.Empty(t, PurgedSplits(300, DefaultLookback, DefaultTestWindow, DefaultPurgeGap))
	splits := PurgedSplits(600, DefaultLookback, DefaultTestWindow, DefaultPurgeGap)
	require.Len(t, splits, 5)
	assert.Equal(t, Split{TrainStart: 0, TrainEnd: 252, TestStart: 257, TestEnd: 320}, splits[0])
}

func TestBucket(t *testing.T) {
	cases := map[float64]int{-2: 0, -0.84: 1, -0.3: 1, -0.25: 2, 0: 2, 0.25: 3, 0.84: 4, 3: 4}
	for z, want := range cases {
		assert.Equal(t, want, Bucket(z), "z=%v", z)
	}
	assert.Equal(t, 2, Bucket(math.NaN()))
}

func TestBuildTargetsDropsUndefinedRows(t *testing.T) {
	feat, err := PrepareFeatures(priceFrame(t, 800), DefaultLookback)
	require.NoError(t, err)
	data, err := BuildTargets(feat, DefaultLookback)
	require.NoError(t, err)

	assert.Equal(t, feat.Len()-DefaultLookback-1, data.Len())
	last := data.Index()[data.Len()-1]
	assert.True(t, last.Before(feat.Index()[feat.Len()-1]), "last feature row has no next period")

	nr, _ := data.Column(ColNextReturn)
	cls, _ := data.Column(models.ColClose)
	featClose, _ := feat.Column(models.ColClose)
	i := feat.Len() - 2
	assert.InDelta(t, featClose[i+1]/featClose[i]-1, nr[data.Len()-1], 1e-12)
	assert.Equal(t, featClose[i], cls[data.Len()-1])
}

func TestPrepareFeaturesDropsIncompleteRows(t *testing.T) {
	frame := priceFrame(t, 800)
	feat, err := PrepareFeatures(frame, DefaultLookback)
	require.NoError(t, err)
	// SMA_200 needs 200 rows, its z-score another 251
	assert.Equal(t, frame.Len()-450, feat.Len())
	assert.Contains(t, FeatureColumns(feat), "Dist_SMA_200_Z")
	assert.Contains(t, FeatureColumns(feat), models.ColATRZ)
}

func TestHistoricalShortInputIsNeutral(t *testing.T) {
	frame := priceFrame(t, 120)
	res := NewScorer(nil, nil, Options{}).Historical(frame)
	assert.True(t, res.Fallback())
	assert.Error(t, res.Err)
	require.Len(t, res.Scores, frame.Len())
	for _, v := range res.Scores {
		assert.Equal(t, 0.0, v)
	}
}

func TestHistoricalMissingCloseIsNeutral(t *testing.T) {
	f, err := models.NewFrame([]time.Time{time.Unix(0, 0)})
	require.NoError(t, err)
	res := NewScorer(nil, nil, Options{}).Historical(f)
	assert.True(t, res.Fallback())
	assert.ErrorIs(t, res.Err, models.ErrMissingInput)
	assert.Len(t, res.Scores, 1)
}

func TestHistoricalScoresOutOfSample(t *testing.T) {
	frame := priceFrame(t, 1300)
	s := NewScorer(nil, nil, Options{})
	res := s.Historical(frame)
	require.False(t, res.Fallback(), "%v", res.Err)
	require.Len(t, res.Scores, frame.Len())
	assert.Equal(t, 5, res.Splits)

	nonZero := 0
	for i, v := range res.Scores {
		assert.True(t, v >= -1 && v <= 1, "row %d", i)
		if v != 0 {
			nonZero++
		}
	}
	assert.Equal(t, 5*DefaultTestWindow, nonZero)
	for i := 0; i < 450+DefaultLookback; i++ {
		assert.Equal(t, 0.0, res.Scores[i], "row %d precedes every test block", i)
	}

	again := s.Historical(frame)
	assert.Equal(t, res.Scores, again.Scores)
}

func TestOptionsDefaultOnlyWhenUnset(t *testing.T) {
	s := NewScorer(nil, nil, Options{})
	assert.Equal(t, DefaultLookback, s.opts.Lookback)
	assert.Equal(t, DefaultTestWindow, s.opts.TestWindow)
	require.NotNil(t, s.opts.PurgeGap)
	assert.Equal(t, DefaultPurgeGap, *s.opts.PurgeGap)

	fast := SoftmaxConfig{Epochs: 20}
	unpurged := NewScorer(nil, nil, Options{PurgeGap: Purge(0), Softmax: fast})
	assert.Equal(t, 0, *unpurged.opts.PurgeGap)

	frame := priceFrame(t, 1300)
	purgedRes := NewScorer(nil, nil, Options{Softmax: fast}).Historical(frame)
	unpurgedRes := unpurged.Historical(frame)
	require.False(t, purgedRes.Fallback(), "%v", purgedRes.Err)
	require.False(t, unpurgedRes.Fallback(), "%v", unpurgedRes.Err)
	// without a gap the first test block starts earlier
	assert.Less(t, firstScored(unpurgedRes.Scores), firstScored(purgedRes.Scores))
}

func firstScored(scores []float64) int {
	for i, v := range scores {
		if v != 0 {
			return i
		}
	}
	return len(scores)
}

type failingClassifier struct{}

func (failingClassifier) Fit([][]float64, []int) error { return errors.New("no solver") }
func (failingClassifier) PredictProba([][]float64) ([][]float64, error) {
	return nil, errors.New("unfitted")
}

func TestHistoricalClassifierFailureIsNeutral(t *testing.T) {
	frame := priceFrame(t, 1300)
	s := NewScorer(nil, nil, Options{NewClassifier: func() Classifier { return failingClassifier{} }})
	res := s.Historical(frame)
	assert.True(t, res.Fallback())
	assert.EqualError(t, res.Err, "no solver")
	assert.Len(t, res.Scores, frame.Len())
}

func TestLatestTrainsWhenMissing(t *testing.T) {
	frame := priceFrame(t, 1300)
	store := newMemStore()
	s := NewScorer(store, nil, Options{Softmax: SoftmaxConfig{Epochs: 50}})
	ctx := context.Background()

	first := s.Latest(ctx, "^GSPC", frame)
	require.False(t, first.Fallback(), "%v", first.Err)
	require.Len(t, first.Scores, 1)
	assert.True(t, first.Scores[0] >= -1 && first.Scores[0] <= 1)
	assert.Equal(t, 1, store.saves)

	second := s.Latest(ctx, "^GSPC", frame)
	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, 1, store.saves, "a stored model is reused")
}

func TestLatestWithoutStoreIsNeutral(t *testing.T) {
	res := NewScorer(nil, nil, Options{}).Latest(context.Background(), "x", priceFrame(t, 300))
	assert.True(t, res.Fallback())
	assert.ErrorIs(t, res.Err, ErrModelUnavailable)
	assert.Equal(t, []float64{0}, res.Scores)
}

func TestTrainInsufficientHistory(t *testing.T) {
	err := NewScorer(newMemStore(), nil, Options{}).Train(context.Background(), "x", priceFrame(t, 300))
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestSoftmaxSeparatesClasses(t *testing.T) {
	var x [][]float64
	var y []int
	for i := 0; i < 200; i++ {
		c := i % NumClasses
		x = append(x, []float64{float64(c) - 2 + 0.1*math.Sin(float64(i))})
		y = append(y, c)
	}
	m := NewSoftmax(SoftmaxConfig{Epochs: 2000, LearningRate: 0.5})
	require.NoError(t, m.Fit(x, y))
	probs, err := m.PredictProba([][]float64{{-2}, {2}})
	require.NoError(t, err)
	assert.Equal(t, 0, argmax(probs[0]))
	assert.Equal(t, 4, argmax(probs[1]))
	assert.InDelta(t, 1.0, sum(probs[0]), 1e-9)
	assert.Less(t, ExpectedScore(probs[0]), 0.0)
	assert.Greater(t, ExpectedScore(probs[1]), 0.0)
}

func TestSoftmaxStateRoundTripPredictsTheSame(t *testing.T) {
	x := [][]float64{{-1, 0.5}, {0, 0}, {1, -0.5}, {2, 1}, {-2, -1}}
	y := []int{1, 2, 3, 4, 0}
	m := NewSoftmax(SoftmaxConfig{Epochs: 100})
	require.NoError(t, m.Fit(x, y))
	b, err := json.Marshal(m)
	require.NoError(t, err)

	var restored Softmax
	require.NoError(t, json.Unmarshal(b, &restored))
	want, err := m.PredictProba(x)
	require.NoError(t, err)
	got, err := restored.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	empty, err := restored.PredictProba(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Error(t, restored.UnmarshalJSON([]byte(`{"weights":[[1],[2]]}`)))
}

func TestSoftmaxRejectsBadInput(t *testing.T) {
	m := NewSoftmax(SoftmaxConfig{})
	assert.ErrorIs(t, m.Fit(nil, nil), ErrModelUnavailable)
	assert.ErrorIs(t, m.Fit([][]float64{{1}}, []int{7}), ErrModelUnavailable)
	assert.ErrorIs(t, m.Fit([][]float64{{math.NaN()}}, []int{1}), ErrModelUnavailable)
	assert.ErrorIs(t, m.Fit([][]float64{{math.Inf(1), math.Inf(-1)}}, []int{1}), ErrModelUnavailable)
	_, err := m.PredictProba([][]float64{{1}})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestExpectedScoreRange(t *testing.T) {
	assert.InDelta(t, -1.0, ExpectedScore([]float64{1, 0, 0, 0, 0}), 1e-12)
	assert.InDelta(t, 0.0, ExpectedScore([]float64{0.2, 0.2, 0.2, 0.2, 0.2}), 1e-12)
	assert.InDelta(t, 1.0, ExpectedScore([]float64{0, 0, 0, 0, 1}), 1e-12)
}

func sum(p []float64) float64 {
	s := 0.0
	for _, v := range p {
		s += v
	}
	return s
}
