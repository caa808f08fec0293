package overlay

import (
	"MacroPulse/internal/domain/models"
)

// TimestampLayout formats the overlay timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Risk and beta weights per regime, in models.Regimes order.
var (
	riskWeights = [models.NumRegimes]float64{1.0, 0.6, 0.2}
	betaWeights = [models.NumRegimes]float64{1.1, 0.7, 0.3}
)

// Build snapshots the last row of frame. It reports false for an empty frame.
// Absent diagnostic columns read as 0.
func Build(frame *models.Frame) (models.Overlay, bool) {
	if frame == nil || frame.Len() == 0 {
		return models.Overlay{}, false
	}
	last := frame.Len() - 1
	var probs models.RegimeProbs
	for _, r := range models.Regimes {
		probs[r] = frame.ValueOr(r.ProbColumn(), last, 0)
	}

	risk, beta := 0.0, 0.0
	for r := range probs {
		risk += riskWeights[r] * probs[r]
		beta += betaWeights[r] * probs[r]
	}

	return models.Overlay{
		Timestamp: frame.Index()[last].UTC().Format(TimestampLayout),
		RegimeProbabilities: models.RegimeProbabilities{
			Expansion: probs[models.RegimeExpansion],
			Slowdown:  probs[models.RegimeSlowdown],
			Stress:    probs[models.RegimeStress],
		},
		MacroScore:           frame.ValueOr(models.ColMacroScore, last, 0),
		RecessionProbability: frame.ValueOr(models.ColRecessionProbability, last, 0),
		RiskDiagnostics: models.RiskDiagnostics{
			FearGreed:            frame.ValueOr(models.ColFearGreed, last, 0),
			MarketStress:         frame.ValueOr(models.ColMarketStress, last, 0),
			LiquidityStressZ:     frame.ValueOr(models.ColMacroLiquidityZ, last, 0),
			LiquidityStressIndex: frame.ValueOr(models.ColLiquidityStressIndex, last, 0),
		},
		RecommendedRiskLevel: risk,
		EquityBetaOverlay:    beta,
		Confidence:           probs.Max(),
	}, true
}
