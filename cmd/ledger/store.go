package main

import (
	"context"
	"fmt"

	"github.com/warp/bookkeeping/api"
	"github.com/warp/bookkeeping/config"
	"github.com/warp/bookkeeping/logger"
	"github.com/warp/bookkeeping/store/postgres"
	"github.com/warp/bookkeeping/store/sqlite"
)

type closableStore interface {
	api.Store
	Close() error
}

// openStore connects the backend selected by cfg.DBDriver.
func (a *app) openStore(ctx context.Context) (closableStore, error) {
	ctx = logger.WithContext(ctx, a.log)

	switch a.cfg.DBDriver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, a.cfg.DatabaseURL, postgres.DefaultPoolOptions)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		a.log.Info().Msg("connected to postgres")
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.New(a.cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		a.log.Info().Str("path", a.cfg.DBPath).Msg("opened sqlite database")
		return store, nil
	}
	return nil, fmt.Errorf("unknown db driver %q", a.cfg.DBDriver)
}
