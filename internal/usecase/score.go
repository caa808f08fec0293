package usecase

import (
	"context"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/pkg/util"
)

// ScoreUseCase scores the most recent row with a persisted model and
// trains models on demand.
type ScoreUseCase struct {
	pipeline *Pipeline
	scorer   domsvc.Scorer
	timeout  time.Duration
}

func NewScoreUseCase(p *Pipeline, s domsvc.Scorer, timeout time.Duration) *ScoreUseCase {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ScoreUseCase{pipeline: p, scorer: s, timeout: timeout}
}

// Latest returns the score of the latest row. Scoring failures are reported
// in the result, acquisition failures as errors.
func (uc *ScoreUseCase) Latest(ctx context.Context, ticker string, period domrepo.Period) (models.LatestScore, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	frame, err := uc.pipeline.Enriched(ctx, ticker, period)
	if err != nil {
		return models.LatestScore{}, err
	}
	res := uc.scorer.Latest(ctx, ticker, frame)
	out := models.LatestScore{Ticker: ticker, Status: res.Status}
	if len(res.Scores) > 0 {
		out.Score = res.Scores[len(res.Scores)-1]
	}
	if idx := frame.Index(); len(idx) > 0 {
		out.Date = util.FormatDate(idx[len(idx)-1])
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out, nil
}

// Train fits and persists the model for ticker.
func (uc *ScoreUseCase) Train(ctx context.Context, ticker string, period domrepo.Period) error {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	frame, err := uc.pipeline.Enriched(ctx, ticker, period)
	if err != nil {
		return err
	}
	return uc.scorer.Train(ctx, ticker, frame)
}
