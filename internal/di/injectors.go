//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"cryptogram/internal"
	"cryptogram/internal/cipher"
	"cryptogram/internal/controllers"
	"cryptogram/internal/persistence"
	"cryptogram/internal/providers"
	"cryptogram/internal/remote"
	"cryptogram/internal/services"
	"cryptogram/internal/structures"
	"cryptogram/internal/syncer"

	wire "github.com/google/wire"
)

func InitApp(ctx context.Context, cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewIdentityProvider,

		provideStore,
		persistence.NewZstdCompressor,
		persistence.NewFileManager,
		persistence.NewArchive,
		provideArchiveReader,

		remote.NewClient,
		cipher.NewEngine,
		syncer.NewCoordinator,
		provideDrainer,
		persistence.NewScheduler,

		services.NewSessionService,
		controllers.NewGameController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
