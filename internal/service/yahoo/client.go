package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"MacroPulse/internal/domain/models"
	drepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/service/cache"
	"MacroPulse/internal/service/upstream"
	pkghttp "MacroPulse/pkg/http"
	"MacroPulse/pkg/logger"
	"MacroPulse/pkg/util"
)

// ErrNoData is returned when a chart response holds no usable rows.
var ErrNoData = errors.New("no price data returned")

const (
	source       = "yahoo"
	chartPath    = "/v8/finance/chart/"
	dailyBars    = "1d"
	liveInterval = "1m"
)

// Config holds the client settings.
type Config struct {
	Endpoints []string
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
	Guard     upstream.Settings
}

// Client implements PriceSource against the Yahoo chart API. Endpoints are
// tried in order; a throttled endpoint is skipped.
type Client struct {
	http      *pkghttp.Client
	endpoints []string
	guard     *upstream.Guard
	cache     cache.BytesCache
	ttl       time.Duration
	metrics   drepo.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// New creates a Yahoo price source. A nil cache disables caching.
func New(cfg Config, c cache.BytesCache, m drepo.Metrics, l *logger.Logger, opts ...pkghttp.ClientOption) *Client {
	if l == nil {
		l = logger.Nop()
	}
	cfg.Guard.Name = source
	opts = append([]pkghttp.ClientOption{
		pkghttp.WithTimeout(cfg.Timeout),
		pkghttp.WithUserAgent(cfg.UserAgent),
	}, opts...)
	return &Client{
		http:      pkghttp.NewClient(opts...),
		endpoints: cfg.Endpoints,
		guard:     upstream.NewGuard(cfg.Guard),
		cache:     c,
		ttl:       cfg.CacheTTL,
		metrics:   m,
		log:       l.With(logger.String("source", source)),
		now:       time.Now,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
		ChartPreviousClose *float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// GetCandles returns daily bars for ticker over period, served from cache
// while fresh.
func (c *Client) GetCandles(ctx context.Context, ticker string, period drepo.Period) ([]models.Candle, error) {
	key := "yahoo:candles:" + util.SanitizeKey(ticker) + ":" + string(period)
	if c.cache != nil {
		var cached []models.Candle
		if ok, err := cache.GetJSON(ctx, c.cache, key, &cached); err != nil {
			c.log.Warn("price cache read failed", logger.String("ticker", ticker), logger.Error(err))
		} else if ok {
			c.log.Debug("price cache hit", logger.String("ticker", ticker))
			return cached, nil
		}
	}

	query := url.Values{
		"range":                {period.RangeParam()},
		"interval":             {dailyBars},
		"events":               {"history"},
		"includeAdjustedClose": {"true"},
	}
	res, err := c.fetch(ctx, ticker, query)
	if err != nil {
		return nil, err
	}
	candles, err := parseCandles(ticker, res)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, candles, c.ttl); err != nil {
			c.log.Warn("price cache write failed", logger.String("ticker", ticker), logger.Error(err))
		}
	}
	c.log.Info("fetched price history",
		logger.String("ticker", ticker),
		logger.String("period", string(period)),
		logger.Int("rows", len(candles)),
	)
	return candles, nil
}

// LiveQuote returns the latest intraday quote. Failures yield a zero quote.
func (c *Client) LiveQuote(ctx context.Context, symbol string) (models.LiveQuote, error) {
	query := url.Values{
		"range":          {"1d"},
		"interval":       {liveInterval},
		"includePrePost": {"true"},
	}
	zero := models.LiveQuote{Symbol: symbol, Timestamp: c.now().UTC()}

	res, err := c.fetch(ctx, symbol, query)
	if err != nil {
		c.log.Warn("live quote unavailable", logger.String("symbol", symbol), logger.Error(err))
		return zero, nil
	}
	q, err := parseQuote(symbol, res)
	if err != nil {
		c.log.Warn("live quote incomplete", logger.String("symbol", symbol), logger.Error(err))
		return zero, nil
	}
	q.Timestamp = zero.Timestamp
	return q, nil
}

func (c *Client) fetch(ctx context.Context, ticker string, query url.Values) (chartResult, error) {
	return upstream.Do(c.guard, func() (chartResult, error) {
		var lastErr error
		for _, base := range c.endpoints {
			if err := c.guard.Wait(ctx); err != nil {
				return chartResult{}, err
			}
			var resp chartResponse
			err := c.http.GetJSON(ctx, base+chartPath+url.PathEscape(ticker), query, &resp)
			if pkghttp.IsStatus(err, http.StatusTooManyRequests) {
				c.record("throttled")
				c.log.Warn("endpoint throttled", logger.String("endpoint", base))
				lastErr = err
				continue
			}
			if err != nil {
				c.record("error")
				c.log.Warn("fetch failed", logger.String("endpoint", base), logger.Error(err))
				lastErr = err
				continue
			}
			if resp.Chart.Error != nil {
				c.record("error")
				lastErr = fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
				continue
			}
			if len(resp.Chart.Result) == 0 {
				c.record("empty")
				lastErr = ErrNoData
				continue
			}
			c.record("ok")
			return resp.Chart.Result[0], nil
		}
		if lastErr == nil {
			lastErr = errors.New("no endpoints configured")
		}
		return chartResult{}, fmt.Errorf("data fetch failed for %s: %w", ticker, lastErr)
	})
}

func (c *Client) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordUpstream(source, outcome)
	}
}

// parseCandles keeps complete rows, dated at midnight UTC, ordered and
// unique per day.
func parseCandles(ticker string, res chartResult) ([]models.Candle, error) {
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	q := res.Indicators.Quote[0]
	out := make([]models.Candle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o, okO := at(q.Open, i)
		h, okH := at(q.High, i)
		l, okL := at(q.Low, i)
		cl, okC := at(q.Close, i)
		v, okV := at(q.Volume, i)
		if !okO || !okH || !okL || !okC || !okV {
			continue
		}
		out = append(out, models.Candle{
			Bucket: util.UnixDay(ts),
			Symbol: ticker,
			Open:   o, High: h, Low: l, Close: cl, Volume: v,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Bucket.Before(out[b].Bucket) })
	dedup := out[:0]
	for _, cd := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Bucket.Equal(cd.Bucket) {
			dedup[n-1] = cd
			continue
		}
		dedup = append(dedup, cd)
	}
	if len(dedup) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	return dedup, nil
}

func parseQuote(symbol string, res chartResult) (models.LiveQuote, error) {
	var price float64
	havePrice := false
	if p := res.Meta.RegularMarketPrice; p != nil {
		price, havePrice = *p, true
	} else if len(res.Indicators.Quote) > 0 {
		closes := res.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if v, ok := at(closes, i); ok {
				price, havePrice = v, true
				break
			}
		}
	}
	prev := res.Meta.ChartPreviousClose
	if !havePrice || prev == nil || *prev == 0 {
		return models.LiveQuote{}, fmt.Errorf("%s: incomplete price data", symbol)
	}
	change := price - *prev
	return models.LiveQuote{
		Symbol:    symbol,
		Price:     round2(price),
		Change:    round2(change),
		PctChange: round2(change / *prev * 100),
	}, nil
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil || math.IsNaN(*vals[i]) {
		return 0, false
	}
	return *vals[i], true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

var _ drepo.PriceSource = (*Client)(nil)
