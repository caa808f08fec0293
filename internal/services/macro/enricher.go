package macro

import (
	"fmt"
	"math"
	"time"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/internal/services/features"
	"MacroPulse/pkg/logger"
)

const (
	defaultZWindow          = 252
	defaultInversionWindow  = 60
	defaultShockWindow      = 20
	defaultYearOverYearLag  = 252
	defaultUnemploymentMean = 252
)

// neutral values for gaps left after forward fill
var neutralFill = map[string]float64{
	models.ColRecessionProbability: 0.5,
	models.ColLiquidityStressIndex: 50,
}

// Enricher derives the standardized macro factor set on a price index.
type Enricher struct {
	zWindow int
	log     *logger.Logger
}

// NewEnricher builds an enricher. A non-positive window falls back to 252.
func NewEnricher(log *logger.Logger, zWindow int) *Enricher {
	if zWindow <= 0 {
		zWindow = defaultZWindow
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Enricher{zWindow: zWindow, log: log}
}

// Enrich aligns raw onto the index of market and returns a copy of market with
// every raw and derived macro column. raw may be nil or empty, in which case
// every column still exists with its neutral value. Derived columns are
// overwritten, so enriching an enriched frame again is a no-op.
func (e *Enricher) Enrich(market, raw *models.Frame) (*models.Frame, error) {
	if market == nil {
		return nil, fmt.Errorf("enrich: market frame: %w", models.ErrMissingInput)
	}
	start := time.Now()
	n := market.Len()

	aligned := make(map[string][]float64, len(Catalog))
	for _, s := range Catalog {
		aligned[s.Name] = alignForward(raw, s.Name, market.Index())
	}
	derived, order := e.derive(aligned, n)

	out := market.Clone()
	for _, name := range Names() {
		if err := out.Set(name, features.FillNaN(aligned[name], 0)); err != nil {
			return nil, fmt.Errorf("enrich %s: %w", name, err)
		}
	}
	for _, name := range order {
		vals := features.FFill(derived[name])
		if err := out.Set(name, features.FillNaN(vals, neutralFill[name])); err != nil {
			return nil, fmt.Errorf("enrich %s: %w", name, err)
		}
	}

	e.log.Debug("macro factors enriched",
		logger.Int("rows", n),
		logger.Bool("macro_available", raw != nil && raw.Len() > 0),
		logger.Duration("took", time.Since(start)),
	)
	return out, nil
}

// derive computes every derived factor from the aligned raw series and
// returns them with their output order.
func (e *Enricher) derive(a map[string][]float64, n int) (map[string][]float64, []string) {
	d := make(map[string][]float64, 32)
	var order []string
	put := func(name string, vals []float64) {
		d[name] = vals
		order = append(order, name)
	}

	y10, y2 := a[SeriesYield10Y], a[SeriesYield2Y]
	rates, credit := a[SeriesRates], a[SeriesCredit]
	unemp := a[SeriesUnemployment]

	curve := combine(n, func(i int) float64 { return y10[i] - y2[i] })
	put(ColYieldCurve, curve)
	put(ColCurveInversionDepth, combine(n, func(i int) float64 {
		if math.IsNaN(curve[i]) {
			return math.NaN()
		}
		return math.Max(0, -curve[i])
	}))
	inverted := combine(n, func(i int) float64 {
		if curve[i] < 0 {
			return 1
		}
		return 0
	})
	put(ColInversionPersistence, features.RollingSum(inverted, defaultInversionWindow))

	inflYoY := scale(features.PctChange(a[SeriesInflation], defaultYearOverYearLag), 100)
	coreYoY := scale(features.PctChange(a[SeriesCoreInflation], defaultYearOverYearLag), 100)
	put(ColInflationYoY, inflYoY)
	put(ColCoreInflationYoY, coreYoY)
	put(ColInflationPersistence, combine(n, func(i int) float64 { return inflYoY[i] - coreYoY[i] }))

	rateAccel := features.RollingStd(features.Diff(features.Diff(y10, 1), 1), defaultShockWindow)
	creditChange := features.RollingMean(features.Diff(credit, 1), defaultShockWindow)
	put(ColMacroShockRaw, combine(n, func(i int) float64 { return rateAccel[i] + creditChange[i] }))

	put(ColRealRates, combine(n, func(i int) float64 { return rates[i] - inflYoY[i] }))
	unempMean := features.RollingMean(unemp, defaultUnemploymentMean)
	put(ColPolicyTightness, combine(n, func(i int) float64 {
		gap := unemp[i] - unempMean[i]
		return rates[i] - (inflYoY[i] - 0.5*gap)
	}))

	for _, name := range zInputs {
		src, ok := a[name]
		if !ok {
			src = d[name]
		}
		put(ZColumn(name), features.RollingZScore(src, e.zWindow))
	}

	growthZ := d[ZColumn(SeriesGrowth)]
	inflZ := d[ZColumn(SeriesInflation)]
	curveZ := d[ZColumn(ColYieldCurve)]
	creditZ := d[ZColumn(SeriesCredit)]
	unempZ := d[ZColumn(SeriesUnemployment)]
	dollarZ := d[ZColumn(SeriesDollar)]
	tightZ := d[ZColumn(ColPolicyTightness)]

	put(models.ColMacroScore, combine(n, func(i int) float64 {
		return macroScore(growthZ[i], inflZ[i], curveZ[i], creditZ[i], unempZ[i])
	}))
	put(models.ColRecessionProbability, combine(n, func(i int) float64 {
		return recessionProbability(curveZ[i], creditZ[i], unempZ[i], tightZ[i])
	}))
	put(models.ColCreditStressZ, append([]float64(nil), creditZ...))
	put(models.ColCurveSlope, append([]float64(nil), curveZ...))
	liquidity := combine(n, func(i int) float64 { return (creditZ[i] + tightZ[i]) / 2 })
	put(models.ColMacroLiquidityZ, liquidity)
	put(models.ColDollarRegimeZ, append([]float64(nil), dollarZ...))
	put(models.ColLiquidityStressIndex, combine(n, func(i int) float64 {
		return liquidityStressIndex(liquidity[i])
	}))
	return d, order
}

func macroScore(growthZ, inflZ, curveZ, creditZ, unempZ float64) float64 {
	return 0.30*growthZ - 0.25*inflZ + 0.20*curveZ - 0.15*creditZ - 0.10*unempZ
}

func recessionProbability(curveZ, creditZ, unempZ, tightZ float64) float64 {
	return features.Sigmoid(-0.4*curveZ + 0.3*creditZ + 0.3*unempZ + 0.2*tightZ)
}

// liquidityStressIndex maps the liquidity z onto 0..100.
func liquidityStressIndex(liquidityZ float64) float64 {
	return 100 * features.Sigmoid(liquidityZ)
}

// alignForward samples column name of raw at each target timestamp using the
// last raw observation at or before it. Raw gaps are forward filled first.
func alignForward(raw *models.Frame, name string, target []time.Time) []float64 {
	out := models.NaNs(len(target))
	if raw == nil || raw.Len() == 0 {
		return out
	}
	col, ok := raw.Column(name)
	if !ok {
		return out
	}
	col = features.FFill(col)
	idx := raw.Index()
	j := -1
	for i, ts := range target {
		for j+1 < len(idx) && !idx[j+1].After(ts) {
			j++
		}
		if j >= 0 {
			out[i] = col[j]
		}
	}
	return out
}

func combine(n int, fn func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

func scale(x []float64, k float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * k
	}
	return out
}

var _ domsvc.MacroEnricher = (*Enricher)(nil)
