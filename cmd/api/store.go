package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmomparler1/just5stars-nextjs/internal/app"
	"github.com/vmomparler1/just5stars-nextjs/internal/config"
	"github.com/vmomparler1/just5stars-nextjs/internal/storage/postgres"
	"github.com/vmomparler1/just5stars-nextjs/internal/storage/sqlite"
	"github.com/vmomparler1/just5stars-nextjs/migrations"
)

const startupTimeout = 5 * time.Second

// backend bundles whichever store the configuration selected.
type backend struct {
	orders app.OrderRepository
	ledger app.EventLedger
	ping   func(ctx context.Context) error
	close  func()
}

func (b backend) Ping(ctx context.Context) error { return b.ping(ctx) }

// openBackend connects to the configured store and brings its schema up to date.
func openBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (backend, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return backend{}, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Printf("using sqlite store path=%s", cfg.SQLitePath)
		return backend{
			orders: store,
			ledger: store,
			ping:   store.Ping,
			close:  func() { _ = store.Close() },
		}, nil
	default:
		startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		defer cancel()

		pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
		if err != nil {
			return backend{}, fmt.Errorf("connect to db: %w", err)
		}
		if err := pool.Ping(startupCtx); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("db ping: %w", err)
		}
		applied, err := migrations.Apply(startupCtx, pool)
		if err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("apply migrations: %w", err)
		}
		for _, name := range applied {
			logger.Printf("applied migration %s", name)
		}
		return backend{
			orders: postgres.NewOrderRepository(pool),
			ledger: postgres.NewEventRepository(pool),
			ping:   pool.Ping,
			close:  pool.Close,
		}, nil
	}
}
