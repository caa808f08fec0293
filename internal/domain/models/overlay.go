package models

// Overlay is a point-in-time snapshot of the regime signal and risk posture.
type Overlay struct {
	Timestamp            string              `json:"timestamp"`
	RegimeProbabilities  RegimeProbabilities `json:"regime_probabilities"`
	MacroScore           float64             `json:"macro_score"`
	RecessionProbability float64             `json:"recession_probability"`
	RiskDiagnostics      RiskDiagnostics     `json:"risk_diagnostics"`
	RecommendedRiskLevel float64             `json:"recommended_risk_level"`
	EquityBetaOverlay    float64             `json:"equity_beta_overlay"`
	Confidence           float64             `json:"confidence"`
}

type RegimeProbabilities struct {
	Expansion float64 `json:"expansion"`
	Slowdown  float64 `json:"slowdown"`
	Stress    float64 `json:"stress"`
}

type RiskDiagnostics struct {
	FearGreed            float64 `json:"fear_greed"`
	MarketStress         float64 `json:"market_stress"`
	LiquidityStressZ     float64 `json:"liquidity_stress_z"`
	LiquidityStressIndex float64 `json:"liquidity_stress_index"`
}

// BacktestSummary aggregates a backtest run.
type BacktestSummary struct {
	Rows            int     `json:"rows"`
	InitialCapital  float64 `json:"initial_capital"`
	FinalEquity     float64 `json:"final_equity"`
	TotalReturn     float64 `json:"total_return"`
	BenchmarkReturn float64 `json:"benchmark_return"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	AverageExposure float64 `json:"average_exposure"`
	// AnnualizedVolatility is the realized volatility of strategy log returns.
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	FinalSignal          float64 `json:"final_signal"`
	ScoreStatus          string  `json:"score_status,omitempty"`
}
