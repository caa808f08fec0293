package fred

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	drepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/service/cache"
	"MacroPulse/internal/service/upstream"
	"MacroPulse/internal/services/macro"
	pkghttp "MacroPulse/pkg/http"
	"MacroPulse/pkg/logger"
	"MacroPulse/pkg/util"
)

const source = "fred"

// Summary placeholders.
const (
	notAvailable = "N/A"
	noAPIKey     = "No API Key"
	noData       = "No Data"
	noDate       = "-"
)

type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
	Guard    upstream.Settings
}

// Client implements MacroSource against the FRED observations API. Without an
// API key it reports no macro data.
type Client struct {
	http    *pkghttp.Client
	baseURL string
	apiKey  string
	series  []macro.Series
	guard   *upstream.Guard
	cache   cache.BytesCache
	ttl     time.Duration
	metrics drepo.Metrics
	log     *logger.Logger
}

func New(cfg Config, c cache.BytesCache, m drepo.Metrics, l *logger.Logger, opts ...pkghttp.ClientOption) *Client {
	if l == nil {
		l = logger.Nop()
	}
	cfg.Guard.Name = source
	opts = append([]pkghttp.ClientOption{pkghttp.WithTimeout(cfg.Timeout)}, opts...)
	return &Client{
		http:    pkghttp.NewClient(opts...),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		series:  macro.Catalog,
		guard:   upstream.NewGuard(cfg.Guard),
		cache:   c,
		ttl:     cfg.CacheTTL,
		metrics: m,
		log:     l.With(logger.String("source", source)),
	}
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// LoadMacro fetches every catalog series concurrently and joins them on the
// union of their dates, forward filled. Series that fail are left empty.
func (c *Client) LoadMacro(ctx context.Context) (*models.Frame, error) {
	if c.apiKey == "" {
		c.log.Warn("FRED api key not set, running in neutral macro mode")
		return models.NewFrame(nil)
	}

	results := make([][]models.Observation, len(c.series))
	var wg sync.WaitGroup
	for i, s := range c.series {
		wg.Add(1)
		go func(i int, s macro.Series) {
			defer wg.Done()
			obs, err := c.fetchSeries(ctx, s.FredID)
			if err != nil {
				c.log.Error("failed to fetch series", logger.String("series", s.FredID), logger.Error(err))
				return
			}
			results[i] = obs
		}(i, s)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return joinSeries(c.series, results)
}

// Summary reports the latest value and date of every series.
func (c *Client) Summary(ctx context.Context) (map[string]models.MacroSeriesSummary, error) {
	out := make(map[string]models.MacroSeriesSummary, len(c.series))
	if c.apiKey == "" {
		for _, s := range c.series {
			out[s.Name] = models.MacroSeriesSummary{Value: notAvailable, Date: noAPIKey}
		}
		return out, nil
	}

	frame, err := c.LoadMacro(ctx)
	if err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		for _, s := range c.series {
			out[s.Name] = models.MacroSeriesSummary{Value: notAvailable, Date: noData}
		}
		return out, nil
	}

	idx := frame.Index()
	for _, s := range c.series {
		out[s.Name] = models.MacroSeriesSummary{Value: notAvailable, Date: noDate}
		col, ok := frame.Column(s.Name)
		if !ok {
			continue
		}
		for i := len(col) - 1; i >= 0; i-- {
			if !math.IsNaN(col[i]) {
				out[s.Name] = models.MacroSeriesSummary{
					Value: math.Round(col[i]*100) / 100,
					Date:  util.FormatDate(idx[i]),
				}
				break
			}
		}
	}
	return out, nil
}

func (c *Client) fetchSeries(ctx context.Context, id string) ([]models.Observation, error) {
	key := "fred:series:" + id
	if c.cache != nil {
		var cached []models.Observation
		if ok, err := cache.GetJSON(ctx, c.cache, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	obs, err := upstream.Do(c.guard, func() ([]models.Observation, error) {
		if err := c.guard.Wait(ctx); err != nil {
			return nil, err
		}
		var resp observationsResponse
		err := c.http.GetJSON(ctx, c.baseURL, map[string][]string{
			"series_id": {id},
			"api_key":   {c.apiKey},
			"file_type": {"json"},
		}, &resp)
		if err != nil {
			return nil, err
		}
		return parseObservations(resp), nil
	})
	if err != nil {
		c.record("error")
		return nil, err
	}
	c.record("ok")

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, obs, c.ttl); err != nil {
			c.log.Warn("macro cache write failed", logger.String("series", id), logger.Error(err))
		}
	}
	return obs, nil
}

func (c *Client) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordUpstream(source, outcome)
	}
}

// parseObservations returns the numeric observations in date order. Missing
// value markers such as "." are skipped; the join forward fills over them.
func parseObservations(resp observationsResponse) []models.Observation {
	out := make([]models.Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		d, err := util.ParseDate(o.Date)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, models.Observation{Date: d, Value: v})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date.Before(out[b].Date) })
	return out
}

// joinSeries builds a frame over the union of observation dates. Each column
// is forward filled and rows with no defined value are dropped.
func joinSeries(series []macro.Series, results [][]models.Observation) (*models.Frame, error) {
	dates := make(map[time.Time]struct{})
	for _, obs := range results {
		for _, o := range obs {
			dates[o.Date] = struct{}{}
		}
	}
	idx := make([]time.Time, 0, len(dates))
	for d := range dates {
		idx = append(idx, d)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a].Before(idx[b]) })
	pos := make(map[time.Time]int, len(idx))
	for i, d := range idx {
		pos[d] = i
	}

	cols := make([][]float64, len(series))
	keep := make([]bool, len(idx))
	for k, obs := range results {
		col := models.NaNs(len(idx))
		for _, o := range obs {
			col[pos[o.Date]] = o.Value
		}
		last := math.NaN()
		for i, v := range col {
			if !math.IsNaN(v) {
				last = v
			}
			col[i] = last
			if !math.IsNaN(last) {
				keep[i] = true
			}
		}
		cols[k] = col
	}

	rows := make([]int, 0, len(idx))
	for i, ok := range keep {
		if ok {
			rows = append(rows, i)
		}
	}
	full, err := models.NewFrame(idx)
	if err != nil {
		return nil, err
	}
	for k, s := range series {
		if err := full.Set(s.Name, cols[k]); err != nil {
			return nil, err
		}
	}
	if len(rows) == len(idx) {
		return full, nil
	}
	return full.Select(rows), nil
}

var _ drepo.MacroSource = (*Client)(nil)
