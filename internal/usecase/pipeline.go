package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/internal/services/features"
	applogger "MacroPulse/pkg/logger"
	pkgmetrics "MacroPulse/pkg/metrics"

	"github.com/google/uuid"
)

// ErrPriceUnavailable is returned when no price history could be acquired.
var ErrPriceUnavailable = errors.New("price history unavailable")

// Dataset is the output of one pipeline run.
type Dataset struct {
	RunID   string
	Ticker  string
	Period  domrepo.Period
	Frame   *models.Frame
	Regimes models.RegimeSeries
	Score   models.ScoreResult
	Summary models.BacktestSummary
}

// PipelineDeps groups the pipeline collaborators. Store is optional.
type PipelineDeps struct {
	Prices     domrepo.PriceSource
	Macro      domrepo.MacroSource
	Enricher   domsvc.MacroEnricher
	Detector   domsvc.RegimeDetector
	Scorer     domsvc.Scorer
	Backtester domsvc.Backtester
	Store      domrepo.DatasetStore
	Metrics    domrepo.Metrics
}

// Pipeline runs acquisition, enrichment, regime detection, scoring and the
// backtest for one ticker.
type Pipeline struct {
	deps    PipelineDeps
	timeout time.Duration
	l       *applogger.Logger
}

func NewPipeline(deps PipelineDeps, timeout time.Duration, l *applogger.Logger) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = pkgmetrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Pipeline{deps: deps, timeout: timeout, l: l}
}

// Enriched acquires prices and macro data concurrently and returns the
// indicator and macro factor frame.
func (p *Pipeline) Enriched(ctx context.Context, ticker string, period domrepo.Period) (*models.Frame, error) {
	var (
		candles  []models.Candle
		priceErr error
		raw      *models.Frame
		macroErr error
		wg       sync.WaitGroup
	)
	start := time.Now()
	wg.Add(2)
	go func() {
		defer wg.Done()
		candles, priceErr = p.deps.Prices.GetCandles(ctx, ticker, period)
	}()
	go func() {
		defer wg.Done()
		raw, macroErr = p.deps.Macro.LoadMacro(ctx)
	}()
	wg.Wait()
	p.deps.Metrics.RecordStage("acquire", time.Since(start).Seconds())

	if priceErr != nil {
		p.deps.Metrics.RecordError("price_fetch")
		return nil, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, ticker, priceErr)
	}
	if macroErr != nil {
		// neutral macro mode
		p.deps.Metrics.RecordError("macro_fetch")
		p.l.Warn("macro data unavailable, using neutral factors",
			applogger.String("ticker", ticker), applogger.Error(macroErr))
		raw = nil
	}

	market, err := models.FrameFromCandles(candles)
	if err != nil {
		return nil, fmt.Errorf("build price frame: %w", err)
	}
	stage := time.Now()
	withInd, err := features.AddIndicators(market)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}
	p.deps.Metrics.RecordStage("indicators", time.Since(stage).Seconds())

	stage = time.Now()
	enriched, err := p.deps.Enricher.Enrich(withInd, raw)
	if err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}
	p.deps.Metrics.RecordStage("enrich", time.Since(stage).Seconds())
	return enriched, nil
}

// Run executes the full pipeline. Regime detection and historical scoring
// run concurrently and join before the backtest.
func (p *Pipeline) Run(ctx context.Context, ticker string, period domrepo.Period) (*Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	runID := uuid.NewString()
	l := p.l.With(applogger.String("run_id", runID), applogger.String("ticker", ticker))
	start := time.Now()

	enriched, err := p.Enriched(ctx, ticker, period)
	if err != nil {
		return nil, err
	}

	var (
		regimeFrame *models.Frame
		regimes     models.RegimeSeries
		regimeErr   error
		score       models.ScoreResult
		wg          sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		t := time.Now()
		regimeFrame, regimes, regimeErr = p.deps.Detector.Apply(enriched)
		p.deps.Metrics.RecordStage("regime", time.Since(t).Seconds())
	}()
	go func() {
		defer wg.Done()
		t := time.Now()
		score = p.deps.Scorer.Historical(enriched)
		p.deps.Metrics.RecordStage("score", time.Since(t).Seconds())
	}()
	wg.Wait()

	if regimeErr != nil {
		return nil, fmt.Errorf("regime: %w", regimeErr)
	}
	p.deps.Metrics.RecordDegenerate(regimes.Degenerate)
	if score.Fallback() {
		p.deps.Metrics.RecordScoreFallback(fallbackReason(score.Err))
		l.Warn("scorer fell back to neutral scores", applogger.Error(score.Err))
	}

	stage := time.Now()
	out, summary, err := p.deps.Backtester.Run(regimeFrame, score.Scores)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	summary.ScoreStatus = string(score.Status)
	p.deps.Metrics.RecordStage("backtest", time.Since(stage).Seconds())

	if n := len(regimes.Probs); n > 0 {
		for _, r := range models.Regimes {
			p.deps.Metrics.RecordRegimeProb(ticker, r.String(), regimes.Probs[n-1][r])
		}
	}

	if p.deps.Store != nil {
		if err := p.deps.Store.SaveMarketData(ctx, ticker, models.RecordsFromFrame(ticker, out)); err != nil {
			p.deps.Metrics.RecordError("store_save")
			l.Warn("persisting dataset failed", applogger.Error(err))
		}
	}

	p.deps.Metrics.RecordStage("pipeline", time.Since(start).Seconds())
	l.Info("pipeline run complete",
		applogger.Int("rows", out.Len()),
		applogger.Int("splits", score.Splits),
		applogger.String("score_status", string(score.Status)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &Dataset{
		RunID:   runID,
		Ticker:  ticker,
		Period:  period,
		Frame:   out,
		Regimes: regimes,
		Score:   score,
		Summary: summary,
	}, nil
}

func fallbackReason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, models.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, models.ErrMissingInput):
		return "missing_input"
	default:
		return "model_error"
	}
}
