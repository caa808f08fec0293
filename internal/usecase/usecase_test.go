package usecase

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/repository"
	"MacroPulse/internal/service/cache"
	"MacroPulse/internal/services/backtest"
	"MacroPulse/internal/services/macro"
	"MacroPulse/internal/services/regime"
	"MacroPulse/internal/services/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	candles []models.Candle
	err     error
	calls   atomic.Int32
}

func (f *fakePrices) GetCandles(context.Context, string, domrepo.Period) ([]models.Candle, error) {
	f.calls.Add(1)
	return f.candles, f.err
}

func (f *fakePrices) LiveQuote(_ context.Context, symbol string) (models.LiveQuote, error) {
	return models.LiveQuote{Symbol: symbol, Price: float64(len(symbol))}, nil
}

type fakeMacro struct {
	frame *models.Frame
	err   error
}

func (f *fakeMacro) LoadMacro(context.Context) (*models.Frame, error) {
	if f.frame == nil && f.err == nil {
		return models.NewFrame(nil)
	}
	return f.frame, f.err
}

func (f *fakeMacro) Summary(context.Context) (map[string]models.MacroSeriesSummary, error) {
	return map[string]models.MacroSeriesSummary{"growth": {Value: "N/A", Date: "No API Key"}}, nil
}

type fakePublisher struct {
	mu  sync.Mutex
	got []models.Overlay
}

func (p *fakePublisher) Publish(_ context.Context, _ string, o models.Overlay) error {
	p.mu.Lock()
	p.got = append(p.got, o)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func syntheticCandles(n int) []models.Candle {
	rng := rand.New(rand.NewSource(11))
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	price := 3000.0
	for i := range out {
		price *= 1 + 0.01*rng.NormFloat64()
		out[i] = models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Open:   price,
			High:   price * 1.004,
			Low:    price * 0.996,
			Close:  price,
			Volume: 1e6,
		}
	}
	return out
}

func newPipeline(prices domrepo.PriceSource, src domrepo.MacroSource, store domrepo.DatasetStore) *Pipeline {
	return NewPipeline(PipelineDeps{
		Prices:     prices,
		Macro:      src,
		Enricher:   macro.NewEnricher(nil, 0),
		Detector:   regime.NewDetector(nil),
		Scorer:     scoring.NewScorer(nil, nil, scoring.Options{}),
		Backtester: backtest.NewEngine(0, nil),
		Store:      store,
	}, 10*time.Second, nil)
}

func TestPipelineRun(t *testing.T) {
	store := repository.NewMemoryDatasetStore()
	p := newPipeline(&fakePrices{candles: syntheticCandles(300)}, &fakeMacro{}, store)

	ds, err := p.Run(context.Background(), "^GSPC", domrepo.Period2y)
	require.NoError(t, err)
	assert.NotEmpty(t, ds.RunID)
	assert.Equal(t, 300, ds.Frame.Len())
	for _, col := range []string{models.ColPExpansion, models.ColSignal, models.ColDrawdown, models.ColMacroScore} {
		assert.True(t, ds.Frame.Has(col), col)
	}
	assert.True(t, ds.Score.Fallback(), "300 rows cannot fill a walk-forward split")
	assert.Equal(t, string(models.ScoreNeutralFallback), ds.Summary.ScoreStatus)

	recs, err := store.GetMarketData(context.Background(), "^GSPC")
	require.NoError(t, err)
	assert.Len(t, recs, 300)
	assert.NotNil(t, recs[0].Regime)
}

func TestPipelineMacroFailureIsNeutral(t *testing.T) {
	p := newPipeline(&fakePrices{candles: syntheticCandles(120)}, &fakeMacro{err: errors.New("fred down")}, nil)
	ds, err := p.Run(context.Background(), "^GSPC", domrepo.Period1y)
	require.NoError(t, err)
	assert.Equal(t, 0.5, ds.Frame.ValueOr(models.ColRecessionProbability, 119, -1))
}

func TestPipelinePriceFailure(t *testing.T) {
	p := newPipeline(&fakePrices{err: errors.New("throttled")}, &fakeMacro{}, nil)
	_, err := p.Run(context.Background(), "^GSPC", domrepo.Period1y)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestOverlayCachedAndPublished(t *testing.T) {
	prices := &fakePrices{candles: syntheticCandles(260)}
	pub := &fakePublisher{}
	uc := NewOverlayUseCase(newPipeline(prices, &fakeMacro{}, nil), cache.NewTTLCache(), time.Minute, pub, nil, nil)

	o1, err := uc.Overlay(context.Background(), "^GSPC", domrepo.Period2y)
	require.NoError(t, err)
	o2, err := uc.Overlay(context.Background(), "^GSPC", domrepo.Period2y)
	require.NoError(t, err)

	assert.Equal(t, o1, o2)
	assert.Equal(t, int32(1), prices.calls.Load())
	assert.Len(t, pub.got, 1)
	probs := o1.RegimeProbabilities
	assert.InDelta(t, 1.0, probs.Expansion+probs.Slowdown+probs.Stress, 1e-9)
	assert.GreaterOrEqual(t, o1.RecommendedRiskLevel, 0.2)
	assert.LessOrEqual(t, o1.RecommendedRiskLevel, 1.0)
}

func TestDatasetTail(t *testing.T) {
	uc := NewOverlayUseCase(newPipeline(&fakePrices{candles: syntheticCandles(100)}, &fakeMacro{}, nil), nil, 0, nil, nil, nil)
	page, err := uc.Dataset(context.Background(), "^GSPC", domrepo.Period1y, 10)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 10)
	assert.Equal(t, int64(100), page.Total)
	assert.Contains(t, page.Rows[9], models.ColRegime)
}

func TestScoreLatestWithoutModelStore(t *testing.T) {
	p := newPipeline(&fakePrices{candles: syntheticCandles(300)}, &fakeMacro{}, nil)
	uc := NewScoreUseCase(p, scoring.NewScorer(nil, nil, scoring.Options{}), time.Second*10)

	got, err := uc.Latest(context.Background(), "^GSPC", domrepo.Period5y)
	require.NoError(t, err)
	assert.Equal(t, models.ScoreNeutralFallback, got.Status)
	assert.Zero(t, got.Score)
	assert.NotEmpty(t, got.Error)
	assert.Equal(t, "2020-10-26", got.Date)
}

func TestMarketUseCase(t *testing.T) {
	store := repository.NewMemoryDatasetStore()
	uc := NewMarketUseCase(&fakePrices{}, &fakeMacro{}, store)

	quotes, err := uc.LiveQuotes(context.Background(), []string{"^GSPC", "^VIX"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "^GSPC", quotes[0].Symbol)
	assert.Equal(t, "^VIX", quotes[1].Symbol)

	_, _, err = uc.History(context.Background(), "^GSPC", 10, time.Time{})
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	day := func(i int) time.Time { return time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC) }
	var recs []models.MarketRecord
	for i := 0; i < 6; i++ {
		recs = append(recs, models.MarketRecord{Date: day(i)})
	}
	require.NoError(t, store.SaveMarketData(context.Background(), "^GSPC", recs))
	rows, total, err := uc.History(context.Background(), "^GSPC", 2, day(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 2)
	assert.Equal(t, day(4), rows[0]["Date"])
	_, total, err = uc.History(context.Background(), "^GSPC", 10, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	_, _, err = NewMarketUseCase(&fakePrices{}, &fakeMacro{}, nil).History(context.Background(), "^GSPC", 10, time.Time{})
	assert.ErrorIs(t, err, ErrStoreDisabled)

	sum, err := uc.MacroSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No API Key", sum["growth"].Date)
}
