package regime

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/pkg/logger"
)

const (
	minStd = 1e-6
	// DefaultInertia is the posterior weight carried into the next prior.
	DefaultInertia = 0.9
)

// Observation is one timestamp of the five regime inputs.
type Observation [5]float64

// Prior is the running regime distribution threaded through Step.
type Prior models.RegimeProbs

// UniformPrior is the starting state of every run.
func UniformPrior() Prior { return Prior(models.UniformProbs()) }

// Detector runs sequential Bayesian updates over fixed Gaussian templates.
// A Detector holds no per-run state and is safe for concurrent use.
type Detector struct {
	templates [models.NumRegimes]Template
	inertia   float64
	log       *logger.Logger
}

// NewDetector returns a detector over DefaultTemplates.
func NewDetector(log *logger.Logger) *Detector {
	if log == nil {
		log = logger.Nop()
	}
	return &Detector{templates: DefaultTemplates, inertia: DefaultInertia, log: log}
}

// WithTemplates returns a copy of d using the given templates.
func (d *Detector) WithTemplates(t [models.NumRegimes]Template) *Detector {
	cp := *d
	cp.templates = t
	return &cp
}

func normalPDF(x, mean, std float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: math.Max(std, minStd)}.Prob(x)
}

// Likelihood returns the per-regime likelihood of obs as a product of
// independent densities.
func (d *Detector) Likelihood(obs Observation) models.RegimeProbs {
	var lik models.RegimeProbs
	for r := range lik {
		p := 1.0
		for k, g := range d.templates[r] {
			p *= normalPDF(obs[k], g.Mean, g.Std)
		}
		lik[r] = p
	}
	return lik
}

// Step folds one observation into prior. It returns the posterior for this
// timestamp, the smoothed prior for the next one, and whether every
// likelihood underflowed to zero and was replaced by a uniform likelihood.
func (d *Detector) Step(prior Prior, obs Observation) (models.RegimeProbs, Prior, bool) {
	lik := d.Likelihood(obs)
	degenerate := lik.Sum() == 0
	if degenerate {
		lik = models.UniformProbs()
	}

	var post models.RegimeProbs
	for r := range post {
		post[r] = prior[r] * lik[r]
	}
	total := post.Sum()
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		post = models.UniformProbs()
	} else {
		for r := range post {
			post[r] /= total
		}
	}

	var next Prior
	floor := (1 - d.inertia) / models.NumRegimes
	for r := range next {
		next[r] = d.inertia*post[r] + floor
	}
	return post, next, degenerate
}

// Observations extracts the regime inputs of every row. Missing columns and
// non-finite values read as 0.
func Observations(frame *models.Frame) []Observation {
	out := make([]Observation, frame.Len())
	for k, name := range models.RegimeInputs {
		col, ok := frame.Column(name)
		if !ok {
			continue
		}
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			out[i][k] = v
		}
	}
	return out
}

// Detect replays the full history from a uniform prior.
func (d *Detector) Detect(frame *models.Frame) (models.RegimeSeries, error) {
	if frame == nil {
		return models.RegimeSeries{}, fmt.Errorf("detect regime: %w", models.ErrMissingInput)
	}
	obs := Observations(frame)
	series := models.RegimeSeries{
		Probs:  make([]models.RegimeProbs, len(obs)),
		Labels: make([]models.Regime, len(obs)),
	}
	prior := UniformPrior()
	for i, o := range obs {
		post, next, degenerate := d.Step(prior, o)
		if degenerate {
			series.Degenerate++
		}
		series.Probs[i] = post
		series.Labels[i] = post.Label()
		prior = next
	}
	return series, nil
}

// Apply returns a copy of frame with P_Expansion, P_Slowdown, P_Stress and
// Regime columns.
func (d *Detector) Apply(frame *models.Frame) (*models.Frame, models.RegimeSeries, error) {
	start := time.Now()
	series, err := d.Detect(frame)
	if err != nil {
		return nil, series, err
	}
	out := frame.Clone()
	n := frame.Len()
	for _, r := range models.Regimes {
		col := make([]float64, n)
		for i := range col {
			col[i] = series.Probs[i][r]
		}
		if err := out.Set(r.ProbColumn(), col); err != nil {
			return nil, series, err
		}
	}
	labels := make([]string, n)
	for i, l := range series.Labels {
		labels[i] = l.String()
	}
	if err := out.SetLabels(models.ColRegime, labels); err != nil {
		return nil, series, err
	}
	if series.Degenerate > 0 {
		d.log.Warn("regime likelihood underflow replaced by uniform", logger.Int("rows", series.Degenerate))
	}
	d.log.Debug("regime probabilities computed", logger.Int("rows", n), logger.Duration("took", time.Since(start)))
	return out, series, nil
}

var _ domsvc.RegimeDetector = (*Detector)(nil)
