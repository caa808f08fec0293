package api

import (
	"net/http"
	"time"

	models "MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	icache "MacroPulse/internal/service/cache"
	"MacroPulse/internal/service/metrics"
	"MacroPulse/internal/service/ratelimit"
	"MacroPulse/internal/usecase"
	xhttp "MacroPulse/pkg/http"
	xlogger "MacroPulse/pkg/logger"
	"MacroPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

const macroSummaryKey = "api:macro:summary"

// AnalyticsHandler serves the overlay, dataset, backtest, score and market
// endpoints under /api.
type AnalyticsHandler struct {
	overlay *usecase.OverlayUseCase
	score   *usecase.ScoreUseCase
	market  *usecase.MarketUseCase
	cache   icache.BytesCache
	ttl     time.Duration
	rl      *ratelimit.Limiter
	l       *xlogger.Logger
}

func NewAnalyticsHandler(l *xlogger.Logger, o *usecase.OverlayUseCase, s *usecase.ScoreUseCase, m *usecase.MarketUseCase) *AnalyticsHandler {
	metrics.Register()
	if l == nil {
		l = xlogger.Nop()
	}
	return &AnalyticsHandler{overlay: o, score: s, market: m, l: l}
}

// SetCache enables response caching of slow-moving endpoints.
func (h *AnalyticsHandler) SetCache(c icache.BytesCache, ttl time.Duration) {
	h.cache = c
	h.ttl = ttl
}

// SetRateLimiter enables per-client rate limiting.
func (h *AnalyticsHandler) SetRateLimiter(rl *ratelimit.Limiter) { h.rl = rl }

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.rl != nil {
		g.Use(h.rateLimit)
	}
	g.GET("/overlay", h.Overlay)
	g.GET("/dataset", h.Dataset)
	g.GET("/backtest", h.Backtest)
	g.GET("/macro/summary", h.MacroSummary)
	g.GET("/score/latest", h.LatestScore)
	g.GET("/live", h.Live)
	g.GET("/history", h.History)
}

func (h *AnalyticsHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.rl.Allow(c.RealIP()) {
			h.l.Warn("api rate_limited", xlogger.String("remote", c.RealIP()), xlogger.String("path", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited").WithParam("path", c.Path()))
		}
		return next(c)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *AnalyticsHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.APIErrors.WithLabelValues(endpoint).Inc()
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.l.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.l.Warn(endpoint+" request failed", xlogger.Int("status", appErr.Status), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *AnalyticsHandler) Overlay(c echo.Context) error {
	defer observe("overlay", time.Now())
	req := &models.OverlayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.overlay.Overlay(c.Request().Context(), req.Ticker, domrepo.NormalizePeriod(req.Period))
	if err != nil {
		return h.fail(c, "overlay", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) Dataset(c echo.Context) error {
	defer observe("dataset", time.Now())
	req := &models.DatasetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	page, err := h.overlay.Dataset(c.Request().Context(), req.Ticker, domrepo.NormalizePeriod(req.Period), req.Limit)
	if err != nil {
		return h.fail(c, "dataset", err)
	}
	c.Response().Header().Set("X-Run-ID", page.RunID)
	return xhttp.ListResponse(c, page.Rows, page.Total)
}

func (h *AnalyticsHandler) Backtest(c echo.Context) error {
	defer observe("backtest", time.Now())
	req := &models.OverlayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.overlay.Backtest(c.Request().Context(), req.Ticker, domrepo.NormalizePeriod(req.Period))
	if err != nil {
		return h.fail(c, "backtest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) MacroSummary(c echo.Context) error {
	defer observe("macro_summary", time.Now())
	ctx := c.Request().Context()
	var res map[string]models.MacroSeriesSummary
	if h.cache != nil {
		if ok, err := icache.GetJSON(ctx, h.cache, macroSummaryKey, &res); err != nil {
			h.l.Warn("macro_summary cache_get_error", xlogger.Error(err))
		} else if ok {
			return xhttp.SuccessResponse(c, res)
		}
	}
	res, err := h.market.MacroSummary(ctx)
	if err != nil {
		return h.fail(c, "macro_summary", err)
	}
	if h.cache != nil {
		if err := icache.SetJSON(ctx, h.cache, macroSummaryKey, res, h.ttl); err != nil {
			h.l.Warn("macro_summary cache_set_error", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) LatestScore(c echo.Context) error {
	defer observe("score_latest", time.Now())
	req := &models.ScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.score.Latest(c.Request().Context(), req.Ticker, domrepo.NormalizePeriod(req.Period))
	if err != nil {
		return h.fail(c, "score_latest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) Live(c echo.Context) error {
	defer observe("live", time.Now())
	req := &models.LiveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := util.SplitSymbols(req.Symbols)
	if len(symbols) == 0 {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_REQUIRED", Field: "Symbols", Message: "Symbols is required"}})
	}
	res, err := h.market.LiveQuotes(c.Request().Context(), symbols)
	if err != nil {
		return h.fail(c, "live", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *AnalyticsHandler) History(c echo.Context) error {
	defer observe("history", time.Now())
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var since time.Time
	if req.Since != "" {
		t, ok := util.ParseTime(req.Since)
		if !ok {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Field:   "since",
				Code:    "ERR_TIME",
				Message: "since must be RFC3339, YYYY-MM-DD or unix seconds",
			}})
		}
		since = t
	}
	rows, total, err := h.market.History(c.Request().Context(), req.Ticker, req.Limit, since)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, total)
}
