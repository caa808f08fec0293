package macro

// Raw macro series names as they appear in the raw macro frame, mapped to the
// FRED series identifiers they are loaded from.
const (
	SeriesGrowth        = "growth"
	SeriesIndProd       = "ind_prod"
	SeriesPayrolls      = "payrolls"
	SeriesInflation     = "inflation"
	SeriesCoreInflation = "core_inflation"
	SeriesRates         = "rates"
	SeriesUnemployment  = "unemployment"
	SeriesYield10Y      = "yield_10y"
	SeriesYield2Y       = "yield_2y"
	SeriesCredit        = "credit"
	SeriesDollar        = "dollar"
)

// Series is a named macro input.
type Series struct {
	Name   string
	FredID string
}

// Catalog lists every raw series in a stable order.
var Catalog = []Series{
	{SeriesGrowth, "GDPC1"},
	{SeriesIndProd, "INDPRO"},
	{SeriesPayrolls, "PAYEMS"},
	{SeriesInflation, "CPIAUCSL"},
	{SeriesCoreInflation, "CPILFESL"},
	{SeriesRates, "FEDFUNDS"},
	{SeriesUnemployment, "UNRATE"},
	{SeriesYield10Y, "DGS10"},
	{SeriesYield2Y, "DGS2"},
	{SeriesCredit, "BAMLH0A0HYM2"},
	{SeriesDollar, "DTWEXBGS"},
}

// Names returns the raw series names in catalog order.
func Names() []string {
	out := make([]string, len(Catalog))
	for i, s := range Catalog {
		out[i] = s.Name
	}
	return out
}

// Derived column names.
const (
	ColYieldCurve           = "yield_curve"
	ColCurveInversionDepth  = "curve_inversion_depth"
	ColInversionPersistence = "inversion_persistence"
	ColInflationYoY         = "inflation_yoy"
	ColCoreInflationYoY     = "core_inflation_yoy"
	ColInflationPersistence = "inflation_persistence"
	ColMacroShockRaw        = "macro_shock_raw"
	ColRealRates            = "real_rates"
	ColPolicyTightness      = "policy_tightness"
)

// zInputs are standardized into "<name>_z" columns.
var zInputs = []string{
	SeriesGrowth,
	SeriesInflation,
	ColYieldCurve,
	SeriesCredit,
	SeriesUnemployment,
	SeriesDollar,
	ColPolicyTightness,
	ColMacroShockRaw,
}

// ZColumn returns the standardized column name of a factor.
func ZColumn(name string) string { return name + "_z" }
