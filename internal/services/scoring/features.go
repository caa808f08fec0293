package scoring

import (
	"fmt"
	"math"
	"strings"

	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/services/features"
)

// Dataset column names added by target construction.
const (
	ColNextReturn  = "Next_Return"
	ColTargetZ     = "Target_Z"
	ColTargetClass = "Target_Class"
)

// NumClasses is the number of ordered return buckets.
const NumClasses = 5

// neutralClass is the middle bucket, used when the target is undefined.
const neutralClass = 2

// BaseFeatures are standardized into "<name>_Z" model inputs.
var BaseFeatures = []string{
	models.ColRSI14,
	models.ColATR14,
	models.ColMACD,
	models.ColMomentum10,
	models.ColSMA50,
	models.ColSMA200,
	models.ColDistSMA50,
	models.ColDistSMA200,
}

// classThresholds split the target z-score into NumClasses buckets.
var classThresholds = [NumClasses - 1]float64{-0.84, -0.25, 0.25, 0.84}

// FeatureColumns returns the model input columns of frame: every column
// whose name ends in "_Z", in frame order.
func FeatureColumns(frame *models.Frame) []string {
	var out []string
	for _, name := range frame.Names() {
		if strings.HasSuffix(name, "_Z") && !strings.HasPrefix(name, "Target") && frame.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// PrepareFeatures returns the rows of frame with a complete set of
// standardized features. Distance-from-average ratios are derived when absent
// and each base feature present is z-scored over window rows. Rows with any
// undefined feature or close price are dropped.
func PrepareFeatures(frame *models.Frame, window int) (*models.Frame, error) {
	if frame == nil || !frame.Has(models.ColClose) {
		return nil, fmt.Errorf("prepare features %s: %w", models.ColClose, models.ErrMissingInput)
	}
	data := frame.Clone()
	cls, _ := data.Column(models.ColClose)

	for _, d := range []struct{ dist, sma string }{
		{models.ColDistSMA50, models.ColSMA50},
		{models.ColDistSMA200, models.ColSMA200},
	} {
		if data.Has(d.dist) {
			continue
		}
		sma, ok := data.Column(d.sma)
		if !ok {
			continue
		}
		dist := make([]float64, len(cls))
		for i := range dist {
			dist[i] = (cls[i] - sma[i]) / sma[i]
		}
		data.MustSet(d.dist, dist)
	}

	for _, name := range BaseFeatures {
		col, ok := data.Column(name)
		if !ok {
			continue
		}
		data.MustSet(name+"_Z", features.RollingZScore(col, window))
	}
	zcols := FeatureColumns(data)
	if len(zcols) == 0 {
		return nil, fmt.Errorf("prepare features: no indicator columns: %w", models.ErrMissingInput)
	}

	keep := completeRows(data, append([]string{models.ColClose}, zcols...))
	if len(keep) == 0 {
		return nil, fmt.Errorf("prepare features over %d rows: %w", frame.Len(), models.ErrInsufficientHistory)
	}
	return data.Select(keep), nil
}

// BuildTargets labels each feature row with the next-period return
// standardized by trailing return volatility, bucketed into NumClasses
// ordered classes. Rows whose target is undefined are dropped, including the
// last row which has no next period.
func BuildTargets(feat *models.Frame, window int) (*models.Frame, error) {
	cls, ok := feat.Column(models.ColClose)
	if !ok {
		return nil, fmt.Errorf("build targets %s: %w", models.ColClose, models.ErrMissingInput)
	}
	data := feat.Clone()
	next := features.Shift(cls, -1)
	nextRet := make([]float64, len(cls))
	for i := range cls {
		nextRet[i] = next[i]/cls[i] - 1
	}
	ret := features.PctChange(cls, 1)
	mean := features.RollingMean(ret, window)
	std := features.RollingStd(ret, window)
	targetZ := make([]float64, len(cls))
	classes := make([]float64, len(cls))
	for i := range cls {
		targetZ[i] = (nextRet[i] - mean[i]) / std[i]
		if math.IsInf(targetZ[i], 0) {
			targetZ[i] = math.NaN()
		}
		classes[i] = float64(Bucket(targetZ[i]))
	}
	data.MustSet(ColNextReturn, nextRet)
	data.MustSet(ColTargetZ, targetZ)
	data.MustSet(ColTargetClass, classes)

	keep := completeRows(data, []string{ColNextReturn, ColTargetZ})
	if len(keep) == 0 {
		return nil, fmt.Errorf("build targets over %d rows: %w", feat.Len(), models.ErrInsufficientHistory)
	}
	return data.Select(keep), nil
}

// Bucket maps a target z-score onto its class. Undefined maps to the
// neutral class.
func Bucket(z float64) int {
	if math.IsNaN(z) {
		return neutralClass
	}
	for k, th := range classThresholds {
		if z < th {
			return k
		}
	}
	return NumClasses - 1
}

// Matrix extracts the rows of cols as a feature matrix.
func Matrix(frame *models.Frame, cols []string) ([][]float64, error) {
	src := make([][]float64, len(cols))
	for j, name := range cols {
		c, ok := frame.Column(name)
		if !ok {
			return nil, fmt.Errorf("feature %s: %w", name, models.ErrMissingInput)
		}
		src[j] = c
	}
	x := make([][]float64, frame.Len())
	for i := range x {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = src[j][i]
		}
		x[i] = row
	}
	return x, nil
}

// Labels extracts the target classes.
func Labels(frame *models.Frame) ([]int, error) {
	c, ok := frame.Column(ColTargetClass)
	if !ok {
		return nil, fmt.Errorf("labels %s: %w", ColTargetClass, models.ErrMissingInput)
	}
	y := make([]int, len(c))
	for i, v := range c {
		y[i] = int(v)
	}
	return y, nil
}

func completeRows(frame *models.Frame, cols []string) []int {
	var keep []int
	for i := 0; i < frame.Len(); i++ {
		ok := true
		for _, name := range cols {
			v, defined := frame.Value(name, i)
			if !defined || math.IsInf(v, 0) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return keep
}
