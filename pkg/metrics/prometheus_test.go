package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordError("fetch")
	r.RecordError("fetch")
	r.RecordScoreFallback("insufficient_history")
	r.RecordDegenerate(3)
	r.RecordDegenerate(0)
	r.RecordRegimeProb("^GSPC", "Stress", 0.25)
	r.RecordUpstream("yahoo", "ok")
	r.RecordPublished("kafka", "^GSPC")
	r.RecordStage("enrich", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("fetch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scoreFallbacks.WithLabelValues("insufficient_history")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.degenerateRows))
	assert.Equal(t, 0.25, testutil.ToFloat64(r.regimeProb.WithLabelValues("^GSPC", "Stress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.upstream.WithLabelValues("yahoo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.published.WithLabelValues("kafka", "^GSPC")))

	n, err := testutil.GatherAndCount(reg, "macropulse_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewWithRegistry(reg)
	b := NewWithRegistry(reg)

	a.RecordError("x")
	b.RecordError("x")
	assert.Equal(t, 2.0, testutil.ToFloat64(a.errorsTotal.WithLabelValues("x")))
}
