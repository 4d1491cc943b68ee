package tokenstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/pkg/database"
)

// Open builds the backend selected by cfg.TokenStore.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return NewMemoryStore(), nil

	case config.TokenStoreFile:
		path := cfg.TokenFile
		if path == "" {
			p, err := DefaultFilePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewFileStore(path), nil

	case config.TokenStoreRedis:
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis token store: %w", err)
		}
		return NewRedisStore(client, cfg.Environment), nil

	case config.TokenStoreSQLite:
		s, err := OpenSQLiteStore(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite token store: %w", err)
		}
		return s, nil

	case config.TokenStorePostgres:
		pool, err := database.NewPostgresPool(ctx, database.DefaultPostgresConfig(cfg.PostgresDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres token store: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "credentials"); err != nil {
			logger.WarnContext(ctx, "failed to register pool metrics", slog.String("error", err.Error()))
		}
		s := NewPostgresStore(pool, pool.Close)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}
