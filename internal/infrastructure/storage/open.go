// Package storage opens the backend selected by the database configuration.
package storage

import (
	"context"
	"fmt"

	"lifeline/internal/config"
	corestorage "lifeline/internal/core/storage"
	"lifeline/internal/infrastructure/storage/postgres"
	"lifeline/internal/infrastructure/storage/sqlite"
)

// Handle is an open backend together with its lifecycle hooks.
type Handle struct {
	Backend corestorage.Backend

	ping     func(ctx context.Context) error
	close    func()
	logStats func(ctx context.Context)
}

// Open connects to the backend of cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Handle, error) {
	switch cfg.Driver {
	case "postgres":
		poolCfg := postgres.DefaultPoolConfig(cfg.DSN)
		if cfg.MaxConns > 0 {
			poolCfg.MaxConns = cfg.MaxConns
		}
		if cfg.MinConns > 0 {
			poolCfg.MinConns = cfg.MinConns
		}
		if cfg.MaxConnLifetime > 0 {
			poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
		}
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		backend := postgres.NewBackend(pool)
		return &Handle{
			Backend:  backend,
			ping:     backend.Ping,
			close:    pool.Close,
			logStats: pool.LogPoolStats,
		}, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		backend := sqlite.NewBackend(db)
		return &Handle{
			Backend:  backend,
			ping:     backend.Ping,
			close:    func() { _ = backend.Close() },
			logStats: func(context.Context) {},
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// Ping checks database connectivity (readiness probe).
func (h *Handle) Ping(ctx context.Context) error {
	return h.ping(ctx)
}

// LogStats logs connection pool statistics where the backend has a pool.
func (h *Handle) LogStats(ctx context.Context) {
	h.logStats(ctx)
}

func (h *Handle) Close() {
	h.close()
}
