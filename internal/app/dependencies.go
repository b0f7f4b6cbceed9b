package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/health"
	"github.com/vladislavdragonenkov/foodstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodstore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/foodstore/internal/storage/rediscache"
)

const storageInitTimeout = 10 * time.Second

// runtimeDependencies содержит репозитории и вспомогательные ресурсы выбранного хранилища.
type runtimeDependencies struct {
	foods       domain.FoodRepository
	categories  domain.CategoryRepository
	orders      domain.OrderRepository
	outbox      domain.OutboxRepository
	idempotency domain.IdempotencyRepository

	storageChecker health.Checker
	// countCache равен nil, если Redis не настроен.
	countCache *rediscache.CountCache
	cacheCheck health.Checker

	closers []func()
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// initRuntimeDependencies открывает хранилище и необязательный кэш счётчика блюд.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	var deps *runtimeDependencies

	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		deps = &runtimeDependencies{
			foods:          memory.NewFoodRepository(),
			categories:     memory.NewCategoryRepository(),
			orders:         memory.NewOrderRepository(),
			outbox:         memory.NewOutboxRepository(),
			idempotency:    memory.NewIdempotencyRepository(),
			storageChecker: health.NewSimpleChecker("storage", func(context.Context) error { return nil }),
		}
		logger.Info("используется in-memory хранилище")
	case StorageDriverPostgres:
		store, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		deps = &runtimeDependencies{
			foods:          postgres.NewFoodRepository(store),
			categories:     postgres.NewCategoryRepository(store),
			orders:         postgres.NewOrderRepository(store),
			outbox:         postgres.NewOutboxRepository(store),
			idempotency:    postgres.NewIdempotencyRepository(store),
			storageChecker: health.NewSimpleChecker("storage", store.Ping),
			closers: []func(){func() {
				if err := store.Close(); err != nil {
					logger.WithError(err).Warn("failed to close postgres store")
				}
			}},
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache := rediscache.NewCountCache(client, rediscache.WithTTL(cfg.CountCacheTTL))
		// Redis не обязателен: при недоступности каталог считает блюда напрямую.
		if err := cache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis недоступен, счётчик блюд будет читаться из хранилища")
		}
		deps.countCache = cache
		deps.cacheCheck = health.NewOptionalChecker("count_cache", cache.Ping)
		deps.closers = append(deps.closers, func() {
			if err := client.Close(); err != nil {
				logger.WithError(err).Warn("failed to close redis client")
			}
		})
		logger.WithField("addr", cfg.RedisAddr).Info("кэш счётчика блюд подключён")
	}

	return deps, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *log.Entry) (*postgres.Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres dsn is required for postgres storage driver")
	}

	initCtx, cancel := context.WithTimeout(ctx, storageInitTimeout)
	defer cancel()

	store, err := postgres.Open(initCtx, cfg.PostgresDSN, postgres.WithMaxConns(cfg.PostgresMaxConns))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(initCtx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("схема postgres актуальна")
	}
	logger.Info("используется postgres хранилище")
	return store, nil
}
