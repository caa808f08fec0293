package service

import (
	"context"

	"MacroPulse/internal/domain/models"
)

// MacroEnricher derives standardized macro factors aligned to a price index.
type MacroEnricher interface {
	Enrich(market *models.Frame, raw *models.Frame) (*models.Frame, error)
}

// RegimeDetector infers per-timestamp regime probabilities from macro factors.
type RegimeDetector interface {
	Apply(frame *models.Frame) (*models.Frame, models.RegimeSeries, error)
}

// Scorer produces out-of-sample directional scores. It never fails: errors
// are reported through the result status.
type Scorer interface {
	Historical(frame *models.Frame) models.ScoreResult
	Latest(ctx context.Context, key string, frame *models.Frame) models.ScoreResult
	Train(ctx context.Context, key string, frame *models.Frame) error
}

// Backtester combines regime probabilities and scores into an equity curve.
type Backtester interface {
	Run(frame *models.Frame, mlScore []float64) (*models.Frame, models.BacktestSummary, error)
}
