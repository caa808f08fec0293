package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/internal/services/features"
	"MacroPulse/pkg/logger"
)

// ErrMissingRegime is returned when regime probabilities are absent from the
// backtest input. The pipeline must abort rather than fabricate an equity curve.
var ErrMissingRegime = errors.New("regime probabilities missing")

const (
	// DefaultInitialCapital seeds the equity curve.
	DefaultInitialCapital = 10000.0

	scoreWeight   = 0.2
	maxSignal     = 1.2
	deRiskSlope   = 2.0
	deRiskFloor   = 0.5
	slowdownShare = 0.5
)

// Engine turns regime probabilities and a directional score into a lagged,
// drawdown-aware equity curve.
type Engine struct {
	initialCapital float64
	log            *logger.Logger
}

// NewEngine builds an engine. A non-positive capital takes the default.
func NewEngine(initialCapital float64, log *logger.Logger) *Engine {
	if initialCapital <= 0 {
		initialCapital = DefaultInitialCapital
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{initialCapital: initialCapital, log: log}
}

// Run returns a copy of frame with Returns, Base_Signal, ML_Score, Signal,
// Strategy_Returns, Cumulative_Strategy, Running_Peak, Drawdown and De_Risk.
// mlScore may be nil for a neutral score; otherwise it must match the frame
// length. The published Signal carries the de-risk multiplier and is meant
// for the next decision; returns are computed from the raw signal.
func (e *Engine) Run(frame *models.Frame, mlScore []float64) (*models.Frame, models.BacktestSummary, error) {
	var summary models.BacktestSummary
	if frame == nil {
		return nil, summary, fmt.Errorf("backtest: %w", models.ErrMissingInput)
	}
	for _, r := range models.Regimes {
		if !frame.Has(r.ProbColumn()) {
			return nil, summary, fmt.Errorf("backtest %s: %w", r.ProbColumn(), ErrMissingRegime)
		}
	}
	closes, ok := frame.Column(models.ColClose)
	if !ok {
		return nil, summary, fmt.Errorf("backtest %s: %w", models.ColClose, models.ErrMissingInput)
	}
	n := frame.Len()
	if mlScore == nil {
		mlScore = make([]float64, n)
	}
	if len(mlScore) != n {
		return nil, summary, fmt.Errorf("backtest score (%d != %d): %w", len(mlScore), n, models.ErrLengthMismatch)
	}
	start := time.Now()

	pe, _ := frame.Column(models.ColPExpansion)
	ps, _ := frame.Column(models.ColPSlowdown)

	returns := features.PctChange(closes, 1)
	base := make([]float64, n)
	blended := make([]float64, n)
	for i := range base {
		base[i] = pe[i] + slowdownShare*ps[i]
		blended[i] = base[i] + scoreWeight*mlScore[i]
	}
	signal := features.Clip(blended, 0, maxSignal)

	strat := make([]float64, n)
	equity := make([]float64, n)
	peak := make([]float64, n)
	drawdown := make([]float64, n)
	published := make([]float64, n)

	eq := e.initialCapital
	hi := math.Inf(-1)
	exposure, exposureRows := 0.0, 0
	for i := 0; i < n; i++ {
		// today's return is earned on yesterday's signal
		r := 0.0
		if i > 0 {
			r = signal[i-1] * returns[i]
			if math.IsNaN(r) {
				r = 0
			}
			if !math.IsNaN(signal[i-1]) {
				exposure += signal[i-1]
				exposureRows++
			}
		}
		strat[i] = r
		eq *= 1 + r
		equity[i] = eq
		hi = math.Max(hi, eq)
		peak[i] = hi
		drawdown[i] = (eq - hi) / hi
	}

	penalty := make([]float64, n)
	for i, dd := range drawdown {
		penalty[i] = 1 + deRiskSlope*dd
	}
	deRisk := features.Clip(penalty, deRiskFloor, 1)
	for i := range published {
		published[i] = signal[i] * deRisk[i]
	}

	out := frame.Clone()
	for _, c := range []struct {
		name string
		vals []float64
	}{
		{models.ColReturns, returns},
		{models.ColBaseSignal, base},
		{models.ColMLScore, mlScore},
		{models.ColSignal, published},
		{models.ColStrategyReturns, strat},
		{models.ColCumulativeStrategy, equity},
		{models.ColRunningPeak, peak},
		{models.ColDrawdown, drawdown},
		{models.ColDeRisk, deRisk},
	} {
		if err := out.Set(c.name, c.vals); err != nil {
			return nil, summary, err
		}
	}

	summary = e.summarize(closes, equity, drawdown, published)
	if exposureRows > 0 {
		summary.AverageExposure = exposure / float64(exposureRows)
	}
	e.log.Debug("backtest complete",
		logger.Int("rows", n),
		logger.Float("total_return", summary.TotalReturn),
		logger.Float("max_drawdown", summary.MaxDrawdown),
		logger.Duration("took", time.Since(start)),
	)
	return out, summary, nil
}

func (e *Engine) summarize(closes, equity, drawdown, published []float64) models.BacktestSummary {
	s := models.BacktestSummary{
		Rows:           len(equity),
		InitialCapital: e.initialCapital,
		FinalEquity:    e.initialCapital,
	}
	if len(equity) == 0 {
		return s
	}
	s.FinalEquity = equity[len(equity)-1]
	s.TotalReturn = s.FinalEquity/e.initialCapital - 1
	for _, dd := range drawdown {
		s.MaxDrawdown = math.Min(s.MaxDrawdown, dd)
	}
	s.BenchmarkReturn = benchmark(closes)
	if v := published[len(published)-1]; !math.IsNaN(v) {
		s.FinalSignal = v
	}
	s.AnnualizedVolatility = features.RealizedVolatility(
		features.ComputeLogReturns(equity), 0, features.TradingDaysPerYear)
	return s
}

// benchmark is the buy-and-hold return between the first and last defined close.
func benchmark(closes []float64) float64 {
	first, last := math.NaN(), math.NaN()
	for _, c := range closes {
		if math.IsNaN(c) || c <= 0 {
			continue
		}
		if math.IsNaN(first) {
			first = c
		}
		last = c
	}
	if math.IsNaN(first) {
		return 0
	}
	return last/first - 1
}

var _ domsvc.Backtester = (*Engine)(nil)
