package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/service/cache"
	"MacroPulse/internal/services/overlay"
	applogger "MacroPulse/pkg/logger"
	pkgmetrics "MacroPulse/pkg/metrics"
	"MacroPulse/pkg/util"
)

// ErrNoData is returned when a pipeline run yields no rows.
var ErrNoData = errors.New("no data")

// OverlayUseCase serves overlay snapshots, backtest summaries and dataset
// rows. Snapshots are cached per ticker and period and fanned out to the
// publisher when one is configured.
type OverlayUseCase struct {
	pipeline  *Pipeline
	cache     cache.BytesCache
	ttl       time.Duration
	publisher domrepo.OverlayPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewOverlayUseCase(p *Pipeline, c cache.BytesCache, ttl time.Duration, pub domrepo.OverlayPublisher, m domrepo.Metrics, l *applogger.Logger) *OverlayUseCase {
	if m == nil {
		m = pkgmetrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &OverlayUseCase{pipeline: p, cache: c, ttl: ttl, publisher: pub, metrics: m, l: l}
}

func overlayKey(ticker string, period domrepo.Period) string {
	return "overlay:" + util.SanitizeKey(ticker) + ":" + string(period)
}

// Overlay returns the latest snapshot for ticker.
func (uc *OverlayUseCase) Overlay(ctx context.Context, ticker string, period domrepo.Period) (models.Overlay, error) {
	key := overlayKey(ticker, period)
	if uc.cache != nil {
		var cached models.Overlay
		if ok, err := cache.GetJSON(ctx, uc.cache, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	return uc.Refresh(ctx, ticker, period)
}

// Refresh recomputes, caches and publishes the snapshot for ticker.
func (uc *OverlayUseCase) Refresh(ctx context.Context, ticker string, period domrepo.Period) (models.Overlay, error) {
	ds, err := uc.pipeline.Run(ctx, ticker, period)
	if err != nil {
		return models.Overlay{}, err
	}
	o, ok := overlay.Build(ds.Frame)
	if !ok {
		return models.Overlay{}, fmt.Errorf("overlay %s: %w", ticker, ErrNoData)
	}

	if uc.cache != nil {
		if err := cache.SetJSON(ctx, uc.cache, overlayKey(ticker, period), o, uc.ttl); err != nil {
			uc.l.Warn("overlay cache write failed", applogger.String("ticker", ticker), applogger.Error(err))
		}
	}
	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, ticker, o); err != nil {
			uc.metrics.RecordError("publish")
			uc.l.Warn("overlay publish failed", applogger.String("ticker", ticker), applogger.Error(err))
		} else {
			uc.metrics.RecordPublished("kafka", ticker)
		}
	}
	return o, nil
}

// Backtest returns the backtest summary for ticker.
func (uc *OverlayUseCase) Backtest(ctx context.Context, ticker string, period domrepo.Period) (models.BacktestSummary, error) {
	ds, err := uc.pipeline.Run(ctx, ticker, period)
	if err != nil {
		return models.BacktestSummary{}, err
	}
	return ds.Summary, nil
}

// DatasetPage is the tail of a computed dataset.
type DatasetPage struct {
	RunID string           `json:"run_id"`
	Rows  []map[string]any `json:"rows"`
	Total int64            `json:"total"`
}

// Dataset returns the last limit rows of the computed dataset.
func (uc *OverlayUseCase) Dataset(ctx context.Context, ticker string, period domrepo.Period, limit int) (DatasetPage, error) {
	ds, err := uc.pipeline.Run(ctx, ticker, period)
	if err != nil {
		return DatasetPage{}, err
	}
	if ds.Frame.Len() == 0 {
		return DatasetPage{}, fmt.Errorf("dataset %s: %w", ticker, ErrNoData)
	}
	tail := ds.Frame.Tail(limit)
	rows := make([]map[string]any, tail.Len())
	for i := range rows {
		rows[i] = tail.Row(i)
	}
	return DatasetPage{RunID: ds.RunID, Rows: rows, Total: int64(ds.Frame.Len())}, nil
}
