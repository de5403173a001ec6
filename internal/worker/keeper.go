// Package worker runs periodic background jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/mtlprog/basket/internal/adjust"
	"github.com/mtlprog/basket/internal/basket"
	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/units"
)

// Adjuster applies unit adjustments. Implemented by *adjust.Module.
type Adjuster interface {
	Adjust(ctx context.Context, b adjust.Basket, caller common.Address, components []common.Address, requested []*big.Int) ([]domain.UnitAdjusted, error)
}

// Observer records what each run saw.
type Observer interface {
	ObserveDrift(basket common.Address, snapshots []domain.ComponentSnapshot)
	ObserveKeeperRun(err error)
}

// AfterRunHook is called after each keeper run, successful or not.
type AfterRunHook interface {
	Run(ctx context.Context) error
}

// KeeperConfig controls a KeeperWorker.
type KeeperConfig struct {
	// Keeper is the caller address used for auto adjustments. It must be an operator.
	Keeper     common.Address
	Interval   time.Duration
	AutoAdjust bool
}

// RunSummary counts what one run did.
type RunSummary struct {
	Baskets  int
	Pending  int
	Adjusted int
	Failed   int
	// Skipped counts baskets whose auto adjustment lost the module lock to
	// another caller. They are picked up on the next run.
	Skipped int
}

// KeeperWorker periodically previews every enabled basket and, when enabled,
// raises pending units to their calculated values.
type KeeperWorker struct {
	store    basket.Store
	adjuster Adjuster
	cfg      KeeperConfig
	observer Observer     // optional
	hook     AfterRunHook // optional
}

// NewKeeperWorker creates a new KeeperWorker. observer and hook may be nil.
func NewKeeperWorker(store basket.Store, adjuster Adjuster, cfg KeeperConfig, observer Observer, hook AfterRunHook) *KeeperWorker {
	return &KeeperWorker{
		store:    store,
		adjuster: adjuster,
		cfg:      cfg,
		observer: observer,
		hook:     hook,
	}
}

// RunOnce reconciles every basket. A failing basket does not stop the others;
// all failures are joined into the returned error.
func (w *KeeperWorker) RunOnce(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	addrs, err := w.store.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing baskets: %w", err)
	}

	var errs []error
	for _, addr := range addrs {
		summary.Baskets++
		pending, adjusted, err := w.reconcile(ctx, addr)
		summary.Pending += pending
		summary.Adjusted += adjusted
		if errors.Is(err, domain.ErrReentrantCall) {
			summary.Skipped++
			slog.Info("KeeperWorker: module busy, basket skipped", "basket", addr.Hex())
			continue
		}
		if err != nil {
			summary.Failed++
			errs = append(errs, fmt.Errorf("basket %s: %w", addr.Hex(), err))
		}
	}
	return summary, errors.Join(errs...)
}

func (w *KeeperWorker) reconcile(ctx context.Context, addr common.Address) (pending, adjusted int, err error) {
	b, err := w.store.Get(ctx, addr)
	if err != nil {
		return 0, 0, err
	}
	_, snaps, err := basket.Preview(ctx, b)
	if err != nil {
		return 0, 0, fmt.Errorf("preview: %w", err)
	}
	if w.observer != nil {
		w.observer.ObserveDrift(addr, snaps)
	}

	toRaise := units.Pending(snaps)
	if len(toRaise) == 0 || !w.cfg.AutoAdjust {
		return len(toRaise), 0, nil
	}

	components := lo.Map(toRaise, func(s domain.ComponentSnapshot, _ int) common.Address { return s.Component })
	auto := lo.Map(toRaise, func(domain.ComponentSnapshot, int) *big.Int { return new(big.Int) })

	events, err := w.adjuster.Adjust(ctx, b, w.cfg.Keeper, components, auto)
	if err != nil {
		return len(toRaise), 0, fmt.Errorf("auto adjust: %w", err)
	}
	return len(toRaise), len(events), nil
}

func (w *KeeperWorker) run(ctx context.Context, label string) {
	summary, err := w.RunOnce(ctx)
	if err != nil {
		slog.Error("KeeperWorker: "+label+" failed",
			"baskets", summary.Baskets,
			"failed", summary.Failed,
			"error", err,
		)
	} else {
		slog.Info("KeeperWorker: "+label+" completed",
			"baskets", summary.Baskets,
			"pending", summary.Pending,
			"adjusted", summary.Adjusted,
			"skipped", summary.Skipped,
		)
	}
	if w.observer != nil {
		w.observer.ObserveKeeperRun(err)
	}

	if w.hook == nil {
		return
	}
	if err := w.hook.Run(ctx); err != nil {
		slog.Error("KeeperWorker: after-run hook failed", "error", err)
	} else {
		slog.Info("KeeperWorker: after-run hook completed")
	}
}

// Run starts the keeper loop. It blocks until the context is cancelled.
func (w *KeeperWorker) Run(ctx context.Context) {
	slog.Info("KeeperWorker: starting", "interval", w.cfg.Interval, "autoAdjust", w.cfg.AutoAdjust)

	// Reconcile immediately on startup
	w.run(ctx, "initial run")

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("KeeperWorker: shutting down")
			return
		case <-ticker.C:
			w.run(ctx, "run")
		}
	}
}
