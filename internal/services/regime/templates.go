package regime

import "MacroPulse/internal/domain/models"

// Gaussian is a one-dimensional normal density template.
type Gaussian struct {
	Mean float64
	Std  float64
}

// Template holds one Gaussian per regime input, in models.RegimeInputs order.
type Template [5]Gaussian

// DefaultTemplates are the expert priors for each regime, indexed by
// models.Regime. Inputs: macro_score, credit_stress_z, curve_slope,
// macro_liquidity_z, dollar_regime_z.
var DefaultTemplates = [models.NumRegimes]Template{
	models.RegimeExpansion: {
		{1.0, 0.8},
		{-0.5, 1.0},
		{1.0, 1.0},
		{-0.5, 1.0},
		{-0.2, 1.0},
	},
	models.RegimeSlowdown: {
		{0.0, 0.7},
		{0.5, 1.0},
		{0.0, 1.0},
		{0.5, 1.0},
		{0.5, 1.0},
	},
	models.RegimeStress: {
		{-1.5, 0.8},
		{2.0, 1.2},
		{-1.0, 1.5},
		{1.5, 1.2},
		{1.5, 1.2},
	},
}
