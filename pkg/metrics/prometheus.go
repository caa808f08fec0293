package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stageLatency   *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	scoreFallbacks *prometheus.CounterVec
	degenerateRows prometheus.Counter
	regimeProb     *prometheus.GaugeVec
	upstream       *prometheus.CounterVec
	published      *prometheus.CounterVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg. Collectors already
// registered on reg are reused.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		stageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macropulse_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		scoreFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_score_fallbacks_total",
				Help: "Scorer runs that returned the neutral fallback",
			},
			[]string{"reason"},
		),
		degenerateRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "macropulse_regime_degenerate_rows_total",
				Help: "Rows whose regime likelihoods all underflowed",
			},
		),
		regimeProb: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "macropulse_regime_probability",
				Help: "Latest regime probability for a ticker",
			},
			[]string{"ticker", "regime"},
		),
		upstream: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_upstream_requests_total",
				Help: "Outbound data requests by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_overlays_published_total",
				Help: "Overlay snapshots published to a backend",
			},
			[]string{"backend", "ticker"},
		),
	}
	r.stageLatency = register(reg, r.stageLatency)
	r.errorsTotal = register(reg, r.errorsTotal)
	r.scoreFallbacks = register(reg, r.scoreFallbacks)
	r.degenerateRows = register(reg, r.degenerateRows)
	r.regimeProb = register(reg, r.regimeProb)
	r.upstream = register(reg, r.upstream)
	r.published = register(reg, r.published)
	return r
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// RecordStage records a pipeline stage latency in seconds.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordScoreFallback(reason string) {
	r.scoreFallbacks.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordDegenerate(count int) {
	if count > 0 {
		r.degenerateRows.Add(float64(count))
	}
}

// RecordRegimeProb sets the latest probability of regime for ticker.
func (r *Recorder) RecordRegimeProb(ticker, regime string, p float64) {
	r.regimeProb.WithLabelValues(ticker, regime).Set(p)
}

func (r *Recorder) RecordUpstream(source, outcome string) {
	r.upstream.WithLabelValues(source, outcome).Inc()
}

func (r *Recorder) RecordPublished(backend, ticker string) {
	r.published.WithLabelValues(backend, ticker).Inc()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordStage(string, float64)              {}
func (Nop) RecordError(string)                       {}
func (Nop) RecordScoreFallback(string)               {}
func (Nop) RecordDegenerate(int)                     {}
func (Nop) RecordRegimeProb(string, string, float64) {}
func (Nop) RecordUpstream(string, string)            {}
func (Nop) RecordPublished(string, string)           {}
