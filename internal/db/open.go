package db

import (
	"context"
	"fmt"

	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/logger"
)

// OpenStore returns the snapshot store cfg selects. For Postgres it connects,
// applies migrations and returns a close func that releases the pool.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (SnapshotStore, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := ApplyMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		return NewStore(pool), pool.Close, nil
	default:
		store := NewFileStore(cfg.SnapshotPath)
		store.Log = log
		return store, func() {}, nil
	}
}
