package features

import (
	"fmt"
	"math"

	"MacroPulse/internal/domain/models"
)

// SMA is the simple moving average of x.
func SMA(x []float64, window int) []float64 { return RollingMean(x, window) }

// RSI is Wilder's relative strength index.
func RSI(close []float64, window int) []float64 {
	change := Diff(close, 1)
	gains := make([]float64, len(change))
	losses := make([]float64, len(change))
	for i, c := range change {
		if isNaN(c) {
			gains[i], losses[i] = nan(), nan()
			continue
		}
		gains[i] = math.Max(c, 0)
		losses[i] = -math.Min(c, 0)
	}
	alpha := 1 / float64(window)
	avgGain := EWMAdjusted(gains, alpha, window)
	avgLoss := EWMAdjusted(losses, alpha, window)
	out := make([]float64, len(close))
	for i := range out {
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// ATR is the average true range smoothed with alpha = 1/window.
func ATR(high, low, close []float64, window int) []float64 {
	tr := make([]float64, len(close))
	for i := range close {
		hl := high[i] - low[i]
		if i == 0 || isNaN(close[i-1]) {
			tr[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return EWM(tr, 1/float64(window))
}

// MACD returns the MACD line, its signal line and the histogram.
func MACD(close []float64, fast, slow, signal int) (line, sig, hist []float64) {
	fastEMA := EWM(close, 2/float64(fast+1))
	slowEMA := EWM(close, 2/float64(slow+1))
	line = make([]float64, len(close))
	for i := range close {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig = EWM(line, 2/float64(signal+1))
	hist = make([]float64, len(close))
	for i := range close {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// BollingerBands returns the upper and lower bands.
func BollingerBands(close []float64, window int, numStd float64) (upper, lower []float64) {
	mid := RollingMean(close, window)
	std := RollingStd(close, window)
	upper = make([]float64, len(close))
	lower = make([]float64, len(close))
	for i := range close {
		upper[i] = mid[i] + std[i]*numStd
		lower[i] = mid[i] - std[i]*numStd
	}
	return upper, lower
}

// Momentum is the percent change over window periods.
func Momentum(close []float64, window int) []float64 {
	out := PctChange(close, window)
	for i := range out {
		out[i] *= 100
	}
	return out
}

// MarketStress combines positive volatility surprise with RSI extremity.
func MarketStress(atrZ, rsi []float64) []float64 {
	out := make([]float64, len(rsi))
	for i := range out {
		vol := atrZ[i]
		if !isNaN(vol) {
			vol = math.Max(vol, 0)
		}
		out[i] = vol + math.Abs(rsi[i]-50)/25
	}
	return out
}

// FearGreed maps RSI and volatility surprise onto a 0..100 sentiment proxy.
func FearGreed(rsi, atrZ []float64) []float64 {
	out := make([]float64, len(rsi))
	for i := range out {
		raw := (rsi[i]-50)/50*100 - atrZ[i]*20
		out[i] = 100 * Sigmoid(raw/40)
	}
	return out
}

// AddIndicators returns a copy of frame with the technical indicator columns.
func AddIndicators(frame *models.Frame) (*models.Frame, error) {
	for _, col := range []string{models.ColHigh, models.ColLow, models.ColClose} {
		if !frame.Has(col) {
			return nil, fmt.Errorf("add indicators %s: %w", col, models.ErrMissingInput)
		}
	}
	out := frame.Clone()
	high, _ := frame.Column(models.ColHigh)
	low, _ := frame.Column(models.ColLow)
	cls, _ := frame.Column(models.ColClose)

	rsi := RSI(cls, 14)
	atr := ATR(high, low, cls, 14)
	atrZ := RollingZScore(atr, 50)
	macd, macdSig, macdHist := MACD(cls, 12, 26, 9)
	bbUp, bbLow := BollingerBands(cls, 20, 2)
	mom := Momentum(cls, 10)

	cols := []struct {
		name string
		vals []float64
	}{
		{models.ColSMA50, SMA(cls, 50)},
		{models.ColSMA200, SMA(cls, 200)},
		{models.ColRSI14, rsi},
		{models.ColATR14, atr},
		{models.ColATRZ, atrZ},
		{models.ColMACD, macd},
		{models.ColMACDSignal, macdSig},
		{models.ColMACDHist, macdHist},
		{models.ColBBUpper, bbUp},
		{models.ColBBLower, bbLow},
		{models.ColMomentum10, mom},
		{models.ColMomentumDrift, Diff(mom, 5)},
		{models.ColMarketStress, MarketStress(atrZ, rsi)},
		{models.ColFearGreed, FearGreed(rsi, atrZ)},
	}
	for _, c := range cols {
		if err := out.Set(c.name, c.vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}
