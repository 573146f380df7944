package repository

import (
	"context"
	"fmt"

	"flowsync/internal/config"
	"flowsync/internal/domain"
	badgerrepo "flowsync/internal/repository/badger"
	"flowsync/internal/repository/memory"
	mongorepo "flowsync/internal/repository/mongo"
	"flowsync/internal/repository/postgres"
	redisrepo "flowsync/internal/repository/redis"

	"go.uber.org/zap"
)

// NewSnapshotRepository opens the snapshot store selected by cfg.StoreType
func NewSnapshotRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.SnapshotRepository, error) {
	logger.Info("Opening snapshot store", zap.String("type", cfg.StoreType))

	switch cfg.StoreType {
	case config.StoreMemory:
		return memory.NewSnapshotRepository(), nil

	case config.StoreBadger:
		return badgerrepo.NewSnapshotRepository(logger.Named("badger"),
			badgerrepo.WithPath(cfg.BadgerPath),
			badgerrepo.WithKeyPrefix(cfg.KeyPrefix+":snapshot:"))

	case config.StoreRedis:
		client, err := redisrepo.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return redisrepo.NewSnapshotRepository(client, cfg.KeyPrefix), nil

	case config.StoreMongo:
		client, err := mongorepo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		collection := client.Database(cfg.MongoDB).Collection(cfg.MongoCollection)
		return mongorepo.NewSnapshotRepository(client, collection), nil

	case config.StorePostgres:
		return postgres.NewSnapshotRepository(ctx, cfg.PostgresDSN)

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}
}
