//go:build wireinject
// +build wireinject

package di

import (
	"CryptoCast/pkg/config"
	"CryptoCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,
		ProvideResponseCache,
		ProvideJobQueue,
		ProvideBinanceClient,

		// Repositories
		ProvideArtifactStore,
		ProvideCandleArchive,
		ProvideForecastPublisher,
		ProvideRunRecorder,

		// Domain services and use cases
		ProvideForecaster,
		ProvideSteps,
		ProvideForecastService,
		ProvideScheduler,

		// Application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
