package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/caseymorris321/waterslab/internal/domain"
	"github.com/caseymorris321/waterslab/internal/health"
	"github.com/caseymorris321/waterslab/internal/service/catalog"
	"github.com/caseymorris321/waterslab/internal/storage/memory"
	"github.com/caseymorris321/waterslab/internal/storage/postgres"
)

// runtimeDependencies — собранные по конфигурации реализации хранилища и каталога.
type runtimeDependencies struct {
	repo         domain.CartRepository
	catalog      domain.ProductCatalog
	storageCheck health.CheckFunc
	closeFn      func() error
}

// initRuntimeDependencies выбирает реализацию хранилища по драйверу.
// Для memory каталог — mock; для postgres и корзины, и каталог живут в базе.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("using in-memory cart storage")
		return &runtimeDependencies{
			repo:    memory.NewCartRepository(),
			catalog: catalog.NewMockService(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires a DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		logger.Info("using postgres cart storage")
		return &runtimeDependencies{
			repo:    postgres.NewCartRepository(store),
			catalog: postgres.NewProductCatalog(store),
			storageCheck: func() error {
				return store.Ping(context.Background())
			},
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
