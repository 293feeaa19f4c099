package di

import (
	"context"

	"cryptogram/internal/persistence"
	"cryptogram/internal/providers"
	"cryptogram/internal/services"
	"cryptogram/internal/storage"
	"cryptogram/internal/structures"
	"cryptogram/internal/syncer"
)

// provideStore adapts storage.NewStore to the injector's context.
func provideStore(ctx context.Context, conf *structures.Config, logger providers.Logger, cache providers.CacheProviderInterface) (storage.StoreInterface, error) {
	return storage.NewStore(ctx, conf, logger, cache)
}

func provideArchiveReader(archive persistence.ArchiveInterface) services.ArchiveReader {
	return archive
}

func provideDrainer(coordinator syncer.CoordinatorInterface) persistence.Drainer {
	return coordinator
}
