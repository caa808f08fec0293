package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Rolling primitives over float64 columns. NaN marks an undefined value. A
// window yields a value only when all of its observations are defined, so
// results never reference rows after the current one.

func nan() float64 { return math.NaN() }

func isNaN(v float64) bool { return math.IsNaN(v) }

func finiteOrNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// windowValues returns x[i-w+1:i+1] when the window is full and fully defined.
func windowValues(x []float64, i, w int) ([]float64, bool) {
	if w <= 0 || i < w-1 {
		return nil, false
	}
	win := x[i-w+1 : i+1]
	for _, v := range win {
		if isNaN(v) {
			return nil, false
		}
	}
	return win, true
}

// RollingMean is the trailing mean over w observations.
func RollingMean(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		win, ok := windowValues(x, i, w)
		if !ok {
			out[i] = nan()
			continue
		}
		out[i] = stat.Mean(win, nil)
	}
	return out
}

// RollingSum is the trailing sum over w observations.
func RollingSum(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		win, ok := windowValues(x, i, w)
		if !ok {
			out[i] = nan()
			continue
		}
		out[i] = floats.Sum(win)
	}
	return out
}

// RollingStd is the trailing sample standard deviation (n-1) over w observations.
func RollingStd(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		win, ok := windowValues(x, i, w)
		if !ok || w < 2 {
			out[i] = nan()
			continue
		}
		out[i] = stat.StdDev(win, nil)
	}
	return out
}

// RollingZScore standardizes x by its trailing mean and sample std over w
// observations. The result is undefined until the window is full and where
// every value in the window is equal.
func RollingZScore(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		win, ok := windowValues(x, i, w)
		if !ok || w < 2 || floats.Max(win) == floats.Min(win) {
			out[i] = nan()
			continue
		}
		mean, std := stat.MeanStdDev(win, nil)
		if std == 0 {
			out[i] = nan()
			continue
		}
		out[i] = (x[i] - mean) / std
	}
	return out
}

// PctChange is x[i]/x[i-p] - 1.
func PctChange(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < p || isNaN(x[i]) || isNaN(x[i-p]) {
			out[i] = nan()
			continue
		}
		out[i] = finiteOrNaN(x[i]/x[i-p] - 1)
	}
	return out
}

// Diff is x[i] - x[i-p].
func Diff(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < p {
			out[i] = nan()
			continue
		}
		out[i] = x[i] - x[i-p]
	}
	return out
}

// Shift moves values by p rows; positive p looks backward, negative p looks
// forward and must only be used for explicitly labeled training targets.
func Shift(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		j := i - p
		if j < 0 || j >= len(x) {
			out[i] = nan()
			continue
		}
		out[i] = x[j]
	}
	return out
}

// FFill carries the last defined value forward. Leading gaps stay undefined.
func FFill(x []float64) []float64 {
	out := make([]float64, len(x))
	last := nan()
	for i, v := range x {
		if !isNaN(v) {
			last = v
		}
		out[i] = last
	}
	return out
}

// FillNaN replaces undefined values with v.
func FillNaN(x []float64, v float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if isNaN(x[i]) {
			out[i] = v
			continue
		}
		out[i] = x[i]
	}
	return out
}

// EWM is the recursive exponentially weighted mean y = (1-a)·y[-1] + a·x,
// seeded with the first defined value. Gaps hold the previous value.
func EWM(x []float64, alpha float64) []float64 {
	out := make([]float64, len(x))
	prev := nan()
	for i, v := range x {
		switch {
		case isNaN(v):
		case isNaN(prev):
			prev = v
		default:
			prev = (1-alpha)*prev + alpha*v
		}
		out[i] = prev
	}
	return out
}

// EWMAdjusted is the normalized exponentially weighted mean
// Σ(1-a)^k·x[i-k] / Σ(1-a)^k over defined observations, undefined until
// minPeriods observations have been seen.
func EWMAdjusted(x []float64, alpha float64, minPeriods int) []float64 {
	out := make([]float64, len(x))
	decay := 1 - alpha
	num, den := 0.0, 0.0
	count := 0
	for i, v := range x {
		num *= decay
		den *= decay
		if !isNaN(v) {
			num += v
			den++
			count++
		}
		if count < minPeriods || den == 0 {
			out[i] = nan()
			continue
		}
		out[i] = num / den
	}
	return out
}

// Clip bounds every defined value to [lo, hi].
func Clip(x []float64, lo, hi float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = clipValue(v, lo, hi)
	}
	return out
}

// clipValue bounds v to [lo, hi]; NaN stays NaN.
func clipValue(v, lo, hi float64) float64 {
	if isNaN(v) {
		return v
	}
	return math.Max(lo, math.Min(hi, v))
}

// Sigmoid is the logistic function.
func Sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }
