//go:build wireinject
// +build wireinject

package di

import (
	"MacroPulse/pkg/config"
	"MacroPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideDatasetStore,
		ProvideModelStore,
		ProvideOverlayPublisher,

		// Data sources
		ProvidePriceSource,
		ProvideMacroSource,

		// Analytics services
		ProvideEnricher,
		ProvideDetector,
		ProvideScorer,
		ProvideBacktester,

		// Use cases
		ProvidePipeline,
		ProvideOverlayUseCase,
		ProvideScoreUseCase,
		ProvideMarketUseCase,

		// Transport
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
