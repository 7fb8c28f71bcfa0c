//go:build wireinject
// +build wireinject

package di

import (
	"ChainPull/pkg/config"
	"ChainPull/pkg/server"

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
		ProvideRedisCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Domain services
		ProvideCalendar,
		ProvideMarketData,
		ProvideUniverse,
		ProvideExpirationCache,
		ProvideQuarantineManager,
		ProvideScraper,

		// Repositories
		ProvideSnapshotStore,

		// Use cases
		ProvideSnapshotProcessor,
		ProvideScrapeTickerJob,
		ProvideQueue,
		ProvideDispatcher,
		ProvideMaintenance,

		// Surfaces
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideScheduler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
