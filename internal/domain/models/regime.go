package models

// Regime is one of the three macro-economic states.
type Regime int

const (
	RegimeExpansion Regime = iota
	RegimeSlowdown
	RegimeStress
)

// NumRegimes is the number of declared regimes.
const NumRegimes = 3

// Regimes lists the regimes in declaration order.
var Regimes = [NumRegimes]Regime{RegimeExpansion, RegimeSlowdown, RegimeStress}

func (r Regime) String() string {
	switch r {
	case RegimeExpansion:
		return "Expansion"
	case RegimeSlowdown:
		return "Slowdown"
	case RegimeStress:
		return "Stress"
	default:
		return "Unknown"
	}
}

// ProbColumn returns the dataset column holding this regime's probability.
func (r Regime) ProbColumn() string { return "P_" + r.String() }

// RegimeProbs is a probability distribution over the regimes.
type RegimeProbs [NumRegimes]float64

// UniformProbs returns the uniform distribution.
func UniformProbs() RegimeProbs {
	var p RegimeProbs
	for i := range p {
		p[i] = 1.0 / NumRegimes
	}
	return p
}

// Label returns the most probable regime; ties go to the first declared.
func (p RegimeProbs) Label() Regime {
	best := 0
	for i := 1; i < NumRegimes; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return Regime(best)
}

// Max returns the largest probability.
func (p RegimeProbs) Max() float64 { return p[p.Label()] }

// Sum returns the total probability mass.
func (p RegimeProbs) Sum() float64 {
	s := 0.0
	for _, v := range p {
		s += v
	}
	return s
}

// RegimeSeries is the per-timestamp output of the regime detector.
type RegimeSeries struct {
	Probs  []RegimeProbs
	Labels []Regime
	// Degenerate counts rows whose likelihoods all underflowed to zero.
	Degenerate int
}
