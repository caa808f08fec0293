package di

import (
	"context"
	"fmt"
	"time"

	"MacroPulse/internal/domain/repository"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/internal/handler/api"
	internalrepo "MacroPulse/internal/repository"
	icache "MacroPulse/internal/service/cache"
	"MacroPulse/internal/service/fred"
	"MacroPulse/internal/service/ratelimit"
	"MacroPulse/internal/service/upstream"
	"MacroPulse/internal/service/yahoo"
	"MacroPulse/internal/services/backtest"
	"MacroPulse/internal/services/macro"
	"MacroPulse/internal/services/regime"
	"MacroPulse/internal/services/scoring"
	"MacroPulse/internal/usecase"
	pkgch "MacroPulse/pkg/clickhouse"
	"MacroPulse/pkg/config"
	xhttp "MacroPulse/pkg/http"
	pkgkafka "MacroPulse/pkg/kafka"
	applogger "MacroPulse/pkg/logger"
	"MacroPulse/pkg/metrics"
	pkgpg "MacroPulse/pkg/postgres"
	"MacroPulse/pkg/server"
)

const schemaTimeout = 10 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the shared byte cache (in-memory or Redis).
func ProvideCache(cfg *config.Config, l *applogger.Logger) (icache.BytesCache, func(), error) {
	if cfg.Cache.Backend != "redis" {
		return icache.NewTTLCache(), func() {}, nil
	}
	rc := icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   "macropulse:",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Cache.Redis.Addr, err)
	}
	l.Info("redis cache ready", applogger.String("addr", cfg.Cache.Redis.Addr))
	return rc, func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}, nil
}

func guardSettings(u config.UpstreamConfig) upstream.Settings {
	return upstream.Settings{
		RatePerSec:      u.RateLimit,
		Burst:           u.Burst,
		BreakerFailures: u.BreakerFailures,
		BreakerTimeout:  u.BreakerTimeout,
	}
}

// ProvidePriceSource creates the Yahoo chart client.
func ProvidePriceSource(cfg *config.Config, c icache.BytesCache, m repository.Metrics, l *applogger.Logger) repository.PriceSource {
	endpoints := []string{cfg.Market.PrimaryURL}
	if cfg.Market.FallbackURL != "" {
		endpoints = append(endpoints, cfg.Market.FallbackURL)
	}
	return yahoo.New(yahoo.Config{
		Endpoints: endpoints,
		UserAgent: cfg.Market.UserAgent,
		Timeout:   cfg.Market.Upstream.Timeout,
		CacheTTL:  cfg.Market.Upstream.CacheTTL,
		Guard:     guardSettings(cfg.Market.Upstream),
	}, c, m, l)
}

// ProvideMacroSource creates the FRED client.
func ProvideMacroSource(cfg *config.Config, c icache.BytesCache, m repository.Metrics, l *applogger.Logger) repository.MacroSource {
	if cfg.Macro.APIKey == "" {
		l.Warn("FRED_API_KEY not set, macro factors run in neutral mode")
	}
	return fred.New(fred.Config{
		BaseURL:  cfg.Macro.BaseURL,
		APIKey:   cfg.Macro.APIKey,
		Timeout:  cfg.Macro.Upstream.Timeout,
		CacheTTL: cfg.Macro.Upstream.CacheTTL,
		Guard:    guardSettings(cfg.Macro.Upstream),
	}, c, m, l)
}

// ProvideDatasetStore opens the configured persistence backend. It returns a
// nil store when persistence is disabled.
func ProvideDatasetStore(cfg *config.Config, l *applogger.Logger) (repository.DatasetStore, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	switch cfg.Store.Backend {
	case "clickhouse":
		client, err := pkgch.NewClient(ctx,
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		l.Info("clickhouse store ready", applogger.String("database", cfg.ClickHouse.Database))
		store := internalrepo.NewCHDatasetStore(client, cfg.Store.Timeout)
		withStoreLogger(store, l, "clickhouse")
		return store, closer(l, "clickhouse", store.Close), nil
	case "postgres":
		client, err := pkgpg.NewClient(ctx,
			pkgpg.WithDSN(cfg.Postgres.DSN),
			pkgpg.WithPool(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres client: %w", err)
		}
		if err := client.InitSchema(ctx, internalrepo.PostgresSchema); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		l.Info("postgres store ready")
		store := internalrepo.NewPGDatasetStore(client, cfg.Store.Timeout)
		withStoreLogger(store, l, "postgres")
		return store, closer(l, "postgres", store.Close), nil
	default:
		return nil, func() {}, nil
	}
}

type loggerSetter interface {
	SetLogger(l *applogger.Logger)
}

// withStoreLogger routes a store's own logging to the app logger.
func withStoreLogger(store repository.DatasetStore, l *applogger.Logger, backend string) {
	if s, ok := store.(loggerSetter); ok {
		s.SetLogger(l.With(applogger.String("store", backend)))
	}
}

// ProvideModelStore creates the on-disk model artifact store.
func ProvideModelStore(cfg *config.Config) repository.ModelStore {
	return internalrepo.NewModelFileStore(cfg.Analytics.ModelDir)
}

// ProvideOverlayPublisher creates the Kafka overlay publisher when enabled.
func ProvideOverlayPublisher(cfg *config.Config, l *applogger.Logger) (repository.OverlayPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.Producer.AutoCreate),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("kafka publisher ready", applogger.Strings("brokers", cfg.Kafka.Brokers), applogger.String("topic", cfg.Kafka.Topic))
	pub := internalrepo.NewKafkaOverlayPublisher(producer, cfg.Kafka.Topic)
	return pub, closer(l, "kafka", pub.Close), nil
}

func closer(l *applogger.Logger, name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			l.Warn(name+" close error", applogger.Error(err))
		}
	}
}

// ProvideEnricher creates the macro factor enricher.
func ProvideEnricher(cfg *config.Config, l *applogger.Logger) domsvc.MacroEnricher {
	return macro.NewEnricher(l, cfg.Analytics.ZWindow)
}

// ProvideDetector creates the regime detector.
func ProvideDetector(l *applogger.Logger) domsvc.RegimeDetector {
	return regime.NewDetector(l)
}

// ProvideScorer creates the walk-forward scorer.
func ProvideScorer(cfg *config.Config, store repository.ModelStore, l *applogger.Logger) domsvc.Scorer {
	return scoring.NewScorer(store, l, scoring.Options{
		Lookback:   cfg.Analytics.Lookback,
		TestWindow: cfg.Analytics.TestWindow,
		PurgeGap:   scoring.Purge(cfg.Analytics.PurgeGap),
		Softmax: scoring.SoftmaxConfig{
			Epochs:       cfg.Analytics.Epochs,
			LearningRate: cfg.Analytics.LearningRate,
			L2:           cfg.Analytics.L2,
		},
	})
}

// ProvideBacktester creates the backtest engine.
func ProvideBacktester(cfg *config.Config, l *applogger.Logger) domsvc.Backtester {
	return backtest.NewEngine(cfg.Analytics.InitialCapital, l)
}

// ProvidePipeline assembles the analytics pipeline.
func ProvidePipeline(
	cfg *config.Config,
	prices repository.PriceSource,
	src repository.MacroSource,
	enricher domsvc.MacroEnricher,
	detector domsvc.RegimeDetector,
	scorer domsvc.Scorer,
	bt domsvc.Backtester,
	store repository.DatasetStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.PipelineDeps{
		Prices:     prices,
		Macro:      src,
		Enricher:   enricher,
		Detector:   detector,
		Scorer:     scorer,
		Backtester: bt,
		Store:      store,
		Metrics:    m,
	}, cfg.Analytics.PipelineTimeout, l)
}

// ProvideOverlayUseCase creates the overlay use case.
func ProvideOverlayUseCase(
	cfg *config.Config,
	p *usecase.Pipeline,
	c icache.BytesCache,
	pub repository.OverlayPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.OverlayUseCase {
	return usecase.NewOverlayUseCase(p, c, cfg.Cache.ResponseTTL, pub, m, l)
}

// ProvideScoreUseCase creates the score use case.
func ProvideScoreUseCase(cfg *config.Config, p *usecase.Pipeline, scorer domsvc.Scorer) *usecase.ScoreUseCase {
	return usecase.NewScoreUseCase(p, scorer, cfg.Analytics.PipelineTimeout)
}

// ProvideMarketUseCase creates the market use case.
func ProvideMarketUseCase(prices repository.PriceSource, src repository.MacroSource, store repository.DatasetStore) *usecase.MarketUseCase {
	return usecase.NewMarketUseCase(prices, src, store)
}

// ProvideRateLimiter builds the per-client API limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	rl := cfg.Server.RateLimit
	if !rl.Enabled {
		return nil
	}
	return ratelimit.New(rl.PerSecond, rl.Burst, rl.IdleTTL)
}

// ProvideHTTPHandler registers the REST and websocket routes.
func ProvideHTTPHandler(
	cfg *config.Config,
	o *usecase.OverlayUseCase,
	s *usecase.ScoreUseCase,
	m *usecase.MarketUseCase,
	c icache.BytesCache,
	l *applogger.Logger,
) xhttp.Handler {
	h := api.NewAnalyticsHandler(l, o, s, m)
	h.SetCache(c, cfg.Cache.ResponseTTL)
	if rl := ProvideRateLimiter(cfg); rl != nil {
		h.SetRateLimiter(rl)
	}
	return xhttp.Handlers{h, api.NewOverlayStream(l, o)}
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	srv *xhttp.Server,
	o *usecase.OverlayUseCase,
	s *usecase.ScoreUseCase,
	l *applogger.Logger,
) *server.App {
	return server.New(cfg, srv, o, s, l)
}
