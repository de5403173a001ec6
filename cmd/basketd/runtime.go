package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/basket/internal/adjust"
	"github.com/mtlprog/basket/internal/basket"
	"github.com/mtlprog/basket/internal/config"
	"github.com/mtlprog/basket/internal/database"
	"github.com/mtlprog/basket/internal/journal"
	"github.com/mtlprog/basket/internal/metrics"
	"github.com/mtlprog/basket/internal/operator"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var errNoStore = errors.New("either DATABASE_URL or SEED_FILE is required")

// runtime wires the services shared by every command.
type runtime struct {
	cfg       config.Config
	pool      *pgxpool.Pool // nil in memory mode
	store     basket.Store
	operators *operator.Registry
	module    *adjust.Module
	pauses    *adjust.PauseSwitch
	journal   *journal.Service
	metrics   *metrics.Service
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, metrics: metrics.NewService(), pauses: adjust.NewPauseSwitch()}

	var seed *basket.Seed
	if cfg.SeedFile != "" {
		s, err := basket.LoadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = &s
	}

	switch {
	case cfg.DatabaseURL != "":
		pool, err := connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		rt.store = basket.NewPgStore(pool)
		rt.journal = journal.NewService(journal.NewPgRepository(pool))
	case seed != nil:
		reg, err := seed.MemoryRegistry(cfg.ModuleAddress)
		if err != nil {
			return nil, fmt.Errorf("building baskets from seed: %w", err)
		}
		rt.store = reg
		rt.journal = journal.NewService(journal.NewMemoryRepository())
		slog.Warn("DATABASE_URL not set, using in-memory store; state is lost on exit", "seed", cfg.SeedFile)
	default:
		return nil, errNoStore
	}

	if seed != nil {
		rt.operators = seed.OperatorRegistry()
	} else {
		rt.operators = operator.NewRegistry(common.Address{})
		slog.Warn("no seed file, operator allowlist is empty and has no owner")
	}

	rt.module = adjust.NewModule(cfg.ModuleAddress, rt.store, rt.operators)
	rt.module.SetPauses(rt.pauses)
	rt.module.SetObserver(rt.metrics)
	rt.module.AddSink(rt.journal)
	rt.module.AddSink(rt.metrics)
	if cfg.AdjustPaused {
		rt.pauses.Pause(adjust.ModuleName)
		slog.Warn("adjustments paused by ADJUST_PAUSED")
	}

	return rt, nil
}

func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}

func connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	applied, err := database.RunMigrations(ctx, pool, migrations)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if len(applied) > 0 {
		slog.Info("database migrated", "applied", applied)
	}
	return pool, nil
}
