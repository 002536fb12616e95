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
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCoinGecko,
		ProvideCache,

		// Repositories
		ProvideStores,
		ProvidePublisher,

		// Use cases and transport
		ProvidePipeline,
		ProvideBaseQuery,
		ProvideHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
