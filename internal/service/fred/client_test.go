package fred

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MacroPulse/internal/service/cache"
	"MacroPulse/internal/service/upstream"
	"MacroPulse/internal/services/macro"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fredServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		switch r.URL.Query().Get("series_id") {
		case "DGS10":
			_, _ = w.Write([]byte(`{"observations":[
				{"date":"2024-01-02","value":"4.0"},
				{"date":"2024-01-03","value":"."},
				{"date":"2024-01-04","value":"4.123"}]}`))
		case "DGS2":
			_, _ = w.Write([]byte(`{"observations":[{"date":"2024-01-03","value":"4.5"}]}`))
		case "UNRATE":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"observations":[]}`))
		}
	}))
}

func newTestClient(url, key string, c cache.BytesCache) *Client {
	return New(Config{
		BaseURL:  url,
		APIKey:   key,
		Timeout:  time.Second,
		CacheTTL: time.Hour,
		Guard:    upstream.Settings{BreakerFailures: 100},
	}, c, nil, nil)
}

func TestLoadMacroJoinsAndForwardFills(t *testing.T) {
	var hits atomic.Int32
	srv := fredServer(t, &hits)
	defer srv.Close()

	c := newTestClient(srv.URL, "secret", cache.NewTTLCache())
	frame, err := c.LoadMacro(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(len(macro.Catalog)), hits.Load(), "one request per series")

	require.Equal(t, 3, frame.Len())
	y10, _ := frame.Column(macro.SeriesYield10Y)
	assert.Equal(t, []float64{4.0, 4.0, 4.123}, y10)
	y2, _ := frame.Column(macro.SeriesYield2Y)
	assert.True(t, math.IsNaN(y2[0]), "no backward fill")
	assert.Equal(t, 4.5, y2[2])
	assert.True(t, frame.Has(macro.SeriesUnemployment), "failed series stay as undefined columns")

	_, err = c.LoadMacro(context.Background())
	require.NoError(t, err)
	// the failed series is retried, the rest come from cache
	assert.Equal(t, int32(len(macro.Catalog)+1), hits.Load())
}

func TestLoadMacroWithoutKeyIsEmpty(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0", "", nil)
	frame, err := c.LoadMacro(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Len())

	sum, err := c.Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, sum, len(macro.Catalog))
	assert.Equal(t, "N/A", sum[macro.SeriesGrowth].Value)
	assert.Equal(t, "No API Key", sum[macro.SeriesGrowth].Date)
}

func TestSummary(t *testing.T) {
	var hits atomic.Int32
	srv := fredServer(t, &hits)
	defer srv.Close()

	c := newTestClient(srv.URL, "secret", nil)
	sum, err := c.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4.12, sum[macro.SeriesYield10Y].Value)
	assert.Equal(t, "2024-01-04", sum[macro.SeriesYield10Y].Date)
	assert.Equal(t, "N/A", sum[macro.SeriesUnemployment].Value)
	assert.Equal(t, "-", sum[macro.SeriesUnemployment].Date)
}

func TestSummaryNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"observations":[]}`))
	}))
	defer srv.Close()

	sum, err := newTestClient(srv.URL, "secret", nil).Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No Data", sum[macro.SeriesCredit].Date)
}
