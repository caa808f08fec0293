package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
)

// ErrStoreDisabled is returned when no dataset store is configured.
var ErrStoreDisabled = errors.New("dataset store disabled")

// MarketUseCase serves macro summaries, live quotes and persisted rows.
type MarketUseCase struct {
	prices domrepo.PriceSource
	macro  domrepo.MacroSource
	store  domrepo.DatasetStore
}

func NewMarketUseCase(prices domrepo.PriceSource, macro domrepo.MacroSource, store domrepo.DatasetStore) *MarketUseCase {
	return &MarketUseCase{prices: prices, macro: macro, store: store}
}

// MacroSummary returns the latest value of every macro series.
func (uc *MarketUseCase) MacroSummary(ctx context.Context) (map[string]models.MacroSeriesSummary, error) {
	return uc.macro.Summary(ctx)
}

// LiveQuotes fetches quotes concurrently, in the order of symbols.
func (uc *MarketUseCase) LiveQuotes(ctx context.Context, symbols []string) ([]models.LiveQuote, error) {
	out := make([]models.LiveQuote, len(symbols))
	errs := make([]error, len(symbols))
	var wg sync.WaitGroup
	for i, s := range symbols {
		wg.Add(1)
		go func(i int, s string) {
			defer wg.Done()
			out[i], errs[i] = uc.prices.LiveQuote(ctx, s)
		}(i, s)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the last limit persisted rows of ticker dated at or after
// since, ordered by date. A zero since keeps every row.
func (uc *MarketUseCase) History(ctx context.Context, ticker string, limit int, since time.Time) ([]map[string]any, int64, error) {
	if uc.store == nil {
		return nil, 0, ErrStoreDisabled
	}
	recs, err := uc.store.GetMarketData(ctx, ticker)
	if err != nil {
		return nil, 0, err
	}
	frame, err := models.FrameFromRecords(recs)
	if err != nil {
		return nil, 0, fmt.Errorf("history %s: %w", ticker, err)
	}
	if !since.IsZero() {
		var keep []int
		for i, t := range frame.Index() {
			if !t.Before(since) {
				keep = append(keep, i)
			}
		}
		frame = frame.Select(keep)
	}
	tail := frame.Tail(limit)
	rows := make([]map[string]any, tail.Len())
	for i := range rows {
		rows[i] = tail.Row(i)
	}
	return rows, int64(frame.Len()), nil
}
