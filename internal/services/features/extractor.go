package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
// Non-positive or undefined prices contribute a zero return.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if !(prev > 0) || !(cur > 0) {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the trailing
// window using the provided number of bars per year. A window of 0 uses
// every return.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window == 0 {
		window = len(logReturns)
	}
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	// annualize
	return stat.StdDev(logReturns[len(logReturns)-window:], nil) * math.Sqrt(barsPerYear)
}

// TradingDaysPerYear is the lookback used by every annual rolling window.
const TradingDaysPerYear = 252
