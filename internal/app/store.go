package service

import (
	"context"
	"fmt"

	"github.com/okian/perfscore/internal/adapters/repository"
	"github.com/okian/perfscore/internal/config"
	"github.com/okian/perfscore/pkg/logger"
)

// OpenStore connects the backend selected by cfg.Store.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		return repository.NewMemoryStore(), nil
	case config.StoreMongo:
		return repository.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase,
			repository.WithMongoLogger(log.Named("store.mongo")),
		)
	case config.StoreSQLite:
		// sqlite serialises writers; one connection avoids "database is locked".
		return repository.NewSQLiteStore(ctx, cfg.SQLitePath,
			repository.WithMaxOpenConns(1),
			repository.WithSQLLogger(log.Named("store.sqlite")),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Store)
	}
}
