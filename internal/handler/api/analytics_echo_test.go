package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/repository"
	icache "MacroPulse/internal/service/cache"
	"MacroPulse/internal/service/ratelimit"
	"MacroPulse/internal/service/upstream"
	"MacroPulse/internal/services/backtest"
	"MacroPulse/internal/services/macro"
	"MacroPulse/internal/services/regime"
	"MacroPulse/internal/services/scoring"
	"MacroPulse/internal/usecase"
	xhttp "MacroPulse/pkg/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrices struct {
	candles []models.Candle
	err     error
}

func (s stubPrices) GetCandles(context.Context, string, domrepo.Period) ([]models.Candle, error) {
	return s.candles, s.err
}

func (s stubPrices) LiveQuote(_ context.Context, symbol string) (models.LiveQuote, error) {
	return models.LiveQuote{Symbol: symbol, Price: 100}, nil
}

type stubMacro struct{ calls int }

func (s *stubMacro) LoadMacro(context.Context) (*models.Frame, error) { return models.NewFrame(nil) }

func (s *stubMacro) Summary(context.Context) (map[string]models.MacroSeriesSummary, error) {
	s.calls++
	return map[string]models.MacroSeriesSummary{"rates": {Value: 5.33, Date: "2024-06-01"}}, nil
}

func candles(n int) []models.Candle {
	rng := rand.New(rand.NewSource(5))
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	p := 4000.0
	for i := range out {
		p *= 1 + 0.01*rng.NormFloat64()
		out[i] = models.Candle{Bucket: start.AddDate(0, 0, i), Open: p, High: p * 1.005, Low: p * 0.995, Close: p, Volume: 1e6}
	}
	return out
}

type fixture struct {
	echo  *echo.Echo
	macro *stubMacro
}

func newFixture(prices domrepo.PriceSource, store domrepo.DatasetStore, rl *ratelimit.Limiter) *fixture {
	src := &stubMacro{}
	scorer := scoring.NewScorer(nil, nil, scoring.Options{})
	p := usecase.NewPipeline(usecase.PipelineDeps{
		Prices:     prices,
		Macro:      src,
		Enricher:   macro.NewEnricher(nil, 0),
		Detector:   regime.NewDetector(nil),
		Scorer:     scorer,
		Backtester: backtest.NewEngine(0, nil),
		Store:      store,
	}, 10*time.Second, nil)
	ov := usecase.NewOverlayUseCase(p, icache.NewTTLCache(), time.Minute, nil, nil, nil)
	h := NewAnalyticsHandler(nil, ov, usecase.NewScoreUseCase(p, scorer, 0), usecase.NewMarketUseCase(prices, src, store))
	h.SetCache(icache.NewTTLCache(), time.Minute)
	if rl != nil {
		h.SetRateLimiter(rl)
	}
	e := echo.New()
	xhttp.Handlers{h, NewOverlayStream(nil, ov)}.RegisterRoutes(e)
	return &fixture{echo: e, macro: src}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (f *fixture) get(t *testing.T, target string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	assert.Equal(t, rec.Code, env.Status)
	return rec.Code, env
}

func TestOverlayEndpoint(t *testing.T) {
	f := newFixture(stubPrices{candles: candles(260)}, nil, nil)
	code, env := f.get(t, "/api/overlay?ticker=%5EGSPC&period=1y")
	require.Equal(t, http.StatusOK, code)

	var o models.Overlay
	require.NoError(t, json.Unmarshal(env.Data, &o))
	sum := o.RegimeProbabilities.Expansion + o.RegimeProbabilities.Slowdown + o.RegimeProbabilities.Stress
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Equal(t, "2021-09-17 00:00:00", o.Timestamp)
}

func TestOverlayValidation(t *testing.T) {
	f := newFixture(stubPrices{candles: candles(50)}, nil, nil)
	code, env := f.get(t, "/api/overlay?period=3y")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "ERR_ONEOF")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no data", fmt.Errorf("chart: %w", errors.New("empty")), http.StatusNotFound},
		{"circuit open", fmt.Errorf("yahoo: %w", upstream.ErrCircuitOpen), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(stubPrices{err: tc.err}, nil, nil)
			code, _ := f.get(t, "/api/backtest")
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestToAppErrorFallsBackToInternal(t *testing.T) {
	appErr := toAppError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "Something went wrong", appErr.Message)
}

func TestDatasetEndpoint(t *testing.T) {
	f := newFixture(stubPrices{candles: candles(120)}, nil, nil)
	code, env := f.get(t, "/api/dataset?limit=5")
	require.Equal(t, http.StatusOK, code)

	var list struct {
		Rows  []map[string]any `json:"rows"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Rows, 5)
	assert.Equal(t, int64(120), list.Total)
	assert.Contains(t, list.Rows[4], "Signal")
	assert.Contains(t, list.Rows[4], "P_Stress")
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture(stubPrices{candles: candles(80)}, nil, nil)
	code, _ := f.get(t, "/api/history")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	store := repository.NewMemoryDatasetStore()
	f = newFixture(stubPrices{candles: candles(80)}, store, nil)
	code, _ = f.get(t, "/api/history?ticker=SPY")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.get(t, "/api/backtest?ticker=SPY")
	require.Equal(t, http.StatusOK, code)
	code, env := f.get(t, "/api/history?ticker=SPY&limit=3")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"total":80`)

	code, env = f.get(t, "/api/history?ticker=SPY&since=2021-03-12")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"total":10`)

	code, env = f.get(t, "/api/history?ticker=SPY&since=last-week")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "ERR_TIME")
}

func TestLiveAndMacroSummary(t *testing.T) {
	f := newFixture(stubPrices{}, nil, nil)
	code, env := f.get(t, "/api/live?symbols=%5Evix,%5Egspc,%5Evix")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows []models.LiveQuote `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 2)
	assert.Equal(t, "^VIX", list.Rows[0].Symbol)
	assert.Equal(t, "^GSPC", list.Rows[1].Symbol)

	for i := 0; i < 2; i++ {
		code, env = f.get(t, "/api/macro/summary")
		require.Equal(t, http.StatusOK, code)
		assert.Contains(t, string(env.Data), `"rates"`)
	}
	assert.Equal(t, 1, f.macro.calls, "second summary served from cache")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(stubPrices{}, nil, ratelimit.New(0.001, 1, 0))
	code, _ := f.get(t, "/api/live")
	assert.Equal(t, http.StatusOK, code)
	code, env := f.get(t, "/api/live")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Contains(t, string(env.Data), "ERR_RATE_LIMITED")
}

func TestOverlayStream(t *testing.T) {
	f := newFixture(stubPrices{candles: candles(100)}, nil, nil)
	srv := httptest.NewServer(f.echo)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/overlay?ticker=SPY&interval=5"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "overlay", msg.Type)
	assert.Equal(t, "SPY", msg.Ticker)
	require.NotNil(t, msg.Data)
	assert.Greater(t, msg.Data.Confidence, 0.0)
}

func TestOverlayStreamRejectsBadInterval(t *testing.T) {
	f := newFixture(stubPrices{}, nil, nil)
	code, _ := f.get(t, "/ws/overlay?interval=1")
	assert.Equal(t, http.StatusBadRequest, code)
}
