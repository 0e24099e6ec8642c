//go:build wireinject
// +build wireinject

package di

import (
	"SignalBot/pkg/config"
	"SignalBot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideBarCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Signal pipeline
		ProvideCatalog,
		ProvideScanPlan,
		ProvideMarketData,
		ProvideScorer,
		ProvideOrchestrator,
		ProvideSelectionFilter,

		// Side effects
		ProvideSignalStore,
		ProvideSignalPublisher,
		ProvideNotifyQueue,
		ProvideNotifier,
		ProvideEnricher,
		ProvideHub,

		// Use cases
		ProvideSignalService,
		ProvideStakeRegistry,
		ProvideKafkaConsumer,

		// Application server
		ProvideHealthChecks,
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
