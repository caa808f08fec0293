package models

// Column names shared between stages and the persistence/visualization
// consumers. They are part of the output contract and must not change.
const (
	ColOpen   = "Open"
	ColHigh   = "High"
	ColLow    = "Low"
	ColClose  = "Close"
	ColVolume = "Volume"

	// technical indicators
	ColSMA50         = "SMA_50"
	ColSMA200        = "SMA_200"
	ColRSI14         = "RSI_14"
	ColATR14         = "ATR_14"
	ColATRZ          = "ATR_Z"
	ColMACD          = "MACD"
	ColMACDSignal    = "MACD_Signal"
	ColMACDHist      = "MACD_Hist"
	ColBBUpper       = "BB_Upper"
	ColBBLower       = "BB_Lower"
	ColMomentum10    = "Momentum_10"
	ColMomentumDrift = "Momentum_Drift"
	ColMarketStress  = "Market_Stress"
	ColFearGreed     = "Fear_Greed"
	ColDistSMA50     = "Dist_SMA_50"
	ColDistSMA200    = "Dist_SMA_200"

	// macro factors
	ColMacroScore           = "macro_score"
	ColRecessionProbability = "recession_probability"
	ColCreditStressZ        = "credit_stress_z"
	ColCurveSlope           = "curve_slope"
	ColMacroLiquidityZ      = "macro_liquidity_z"
	ColDollarRegimeZ        = "dollar_regime_z"
	ColLiquidityStressIndex = "liquidity_stress_index"

	// regime
	ColPExpansion = "P_Expansion"
	ColPSlowdown  = "P_Slowdown"
	ColPStress    = "P_Stress"
	ColRegime     = "Regime"

	// backtest
	ColReturns            = "Returns"
	ColBaseSignal         = "Base_Signal"
	ColMLScore            = "ML_Score"
	ColSignal             = "Signal"
	ColStrategyReturns    = "Strategy_Returns"
	ColCumulativeStrategy = "Cumulative_Strategy"
	ColRunningPeak        = "Running_Peak"
	ColDrawdown           = "Drawdown"
	ColDeRisk             = "De_Risk"
)

// RegimeInputs are the five standardized factors consumed by the regime detector.
var RegimeInputs = []string{
	ColMacroScore,
	ColCreditStressZ,
	ColCurveSlope,
	ColMacroLiquidityZ,
	ColDollarRegimeZ,
}
