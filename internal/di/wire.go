//go:build wireinject
// +build wireinject

package di

import (
	"SpinPull/pkg/config"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/server"

	"github.com/google/wire"
)

// coreSet builds the spin pipeline shared by the service and the CLI.
var coreSet = wire.NewSet(
	ProvideClock,
	ProvideStore,
	ProvideStateRepository,
	ProvideCache,
	ProvideWriterLock,
	ProvidePredictor,
	ProvideIngester,
	ProvideRegistry,
	ProvideOrchestrator,
	ProvideQueryService,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		coreSet,

		// Outbound events and live feed
		ProvideKafkaProducer,
		ProvideEventPublisher,
		ProvideHub,
		ProvideBroadcaster,

		// Intake
		ProvideSpinGate,
		ProvideKafkaConsumer,
		ProvideKafkaSpinsHandler,
		ProvideQueueConsumer,

		// HTTP
		ProvideRateLimiter,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeTools wires the pipeline without any intake or outbound
// transport, for the operator CLI.
func InitializeTools(cfg *config.Config, l *applogger.Logger) (*Tools, func(), error) {
	wire.Build(
		coreSet,
		ProvideCLIMetrics,
		ProvideNoPublisher,
		ProvideNoBroadcaster,
		wire.Struct(new(Tools), "*"),
	)
	return nil, nil, nil
}
