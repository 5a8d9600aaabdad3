package app

import (
	"context"
	"database/sql"
	"fmt"

	"secrets-service/internal/config"
	"secrets-service/internal/db"
	"secrets-service/internal/identity"
	"secrets-service/internal/logger"
	"secrets-service/internal/redis"

	_ "github.com/lib/pq"
)

type Infra struct {
	Identities identity.Store
	Redis      *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	store, err := openIdentityStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("database ready", map[string]any{
		"driver": cfg.DatabaseDriver,
	})

	redisClient, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("redis ready", map[string]any{
		"addr": cfg.RedisAddr,
	})

	return &Infra{
		Identities: store,
		Redis:      redisClient,
	}, nil
}

func openIdentityStore(ctx context.Context, cfg config.Config) (identity.Store, error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		return identity.OpenSQLite(cfg.DatabaseDSN)
	case "postgres":
		sqlDB, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}

		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("postgres: ping: %w", err)
		}

		if err := db.RunIdentitiesMigration(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}

		return identity.NewPostgresStore(&db.DB{DB: sqlDB}), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

func (i *Infra) Close() error {
	redisErr := i.Redis.Close()
	if err := i.Identities.Close(); err != nil {
		return err
	}
	return redisErr
}
