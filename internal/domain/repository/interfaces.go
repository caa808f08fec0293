package repository

import (
	"context"
	"errors"

	"MacroPulse/internal/domain/models"
)

// ErrNotFound is returned by stores when nothing is stored under a key.
var ErrNotFound = errors.New("not found")

// PriceSource provides daily OHLCV history and live quotes.
type PriceSource interface {
	GetCandles(ctx context.Context, ticker string, period Period) ([]models.Candle, error)
	LiveQuote(ctx context.Context, symbol string) (models.LiveQuote, error)
}

// MacroSource provides raw macro series as a sparse, date-indexed frame.
// An empty frame (no rows) means macro data is unavailable.
type MacroSource interface {
	LoadMacro(ctx context.Context) (*models.Frame, error)
	Summary(ctx context.Context) (map[string]models.MacroSeriesSummary, error)
}

// DatasetStore persists the enriched dataset rows of a ticker.
type DatasetStore interface {
	// SaveMarketData replaces every stored row of ticker with records.
	SaveMarketData(ctx context.Context, ticker string, records []models.MarketRecord) error
	// GetMarketData returns the rows of ticker ordered by date.
	GetMarketData(ctx context.Context, ticker string) ([]models.MarketRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// ModelStore persists serialized classifier artifacts.
type ModelStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, artifact []byte) error
}

// OverlayPublisher fans out computed overlay snapshots.
type OverlayPublisher interface {
	Publish(ctx context.Context, ticker string, o models.Overlay) error
	Close() error
}

// Metrics records pipeline observations.
type Metrics interface {
	RecordStage(stage string, seconds float64)
	RecordError(kind string)
	RecordScoreFallback(reason string)
	RecordDegenerate(count int)
	RecordRegimeProb(ticker, regime string, p float64)
	RecordUpstream(source, outcome string)
	RecordPublished(backend, ticker string)
}
