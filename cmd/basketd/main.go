package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/basket/internal/api"
	"github.com/mtlprog/basket/internal/basket"
	"github.com/mtlprog/basket/internal/config"
	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/export"
	"github.com/mtlprog/basket/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:   "basketd",
		Usage:  "reconcile basket position units with actual token balances",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and keeper (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:  "seed",
				Usage: "upsert baskets from SEED_FILE into the database",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "seed YAML path", EnvVars: []string{"SEED_FILE"}, Required: true},
				},
				Action: seed,
			},
			{
				Name:  "preview",
				Usage: "print current and calculated units for a basket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "basket", Usage: "basket address", Required: true},
					&cli.StringSliceFlag{Name: "component", Usage: "component address (repeatable, default all)"},
				},
				Action: preview,
			},
			{
				Name:  "export",
				Usage: "write adjustments and positions to an .xlsx file",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "basket", Usage: "basket address (repeatable, default all)"},
					&cli.StringFlag{Name: "out", Usage: "output file", Value: "baskets.xlsx"},
				},
				Action: exportXLSX,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	ctx := c.Context
	cfg := config.Load()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Keeper with optional Google Sheets export after each run
	var hook worker.AfterRunHook
	if cfg.SheetsEnabled() {
		writer, err := export.NewSheetsWriter(ctx, cfg.GoogleSheetsID, cfg.GoogleCredentialsJSON)
		if err != nil {
			return fmt.Errorf("creating sheets writer: %w", err)
		}
		hook = export.NewService(rt.store, rt.journal, writer, cfg.ExportLimit)
		slog.Info("Google Sheets export enabled", "spreadsheet", cfg.GoogleSheetsID)
	}

	keeperCfg := worker.KeeperConfig{
		Keeper:     cfg.KeeperAddress,
		Interval:   cfg.KeeperInterval,
		AutoAdjust: cfg.KeeperAutoAdjust,
	}
	if keeperCfg.AutoAdjust && !rt.operators.IsOperator(keeperCfg.Keeper) {
		slog.Warn("KEEPER_ADDRESS is not an operator, auto adjust disabled", "keeper", keeperCfg.Keeper.Hex())
		keeperCfg.AutoAdjust = false
	}
	keeper := worker.NewKeeperWorker(rt.store, rt.module, keeperCfg, rt.metrics, hook)
	go keeper.Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, mutating endpoints are unprotected")
	}

	handler := api.NewHandler(rt.store, rt.module, rt.operators, rt.journal)
	srv := api.NewServer(cfg.HTTPPort, handler, rt.metrics.Handler(), cfg.AdminAPIKey)

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			cancelServe()
		}
	}()

	// Wait for shutdown signal
	<-serveCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func migrate(c *cli.Context) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	pool, err := connect(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	pool.Close()
	log.Println("Migrations up to date")
	return nil
}

func seed(c *cli.Context) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	s, err := basket.LoadSeed(c.String("file"))
	if err != nil {
		return err
	}
	pool, err := connect(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := basket.NewPgStore(pool).ApplySeed(c.Context, s, cfg.ModuleAddress); err != nil {
		return fmt.Errorf("applying seed: %w", err)
	}
	log.Printf("Seeded %d baskets", len(s.Baskets))
	return nil
}

func preview(c *cli.Context) error {
	ctx := c.Context
	rt, err := newRuntime(ctx, config.Load())
	if err != nil {
		return err
	}
	defer rt.Close()

	addr, err := parseAddress(c.String("basket"))
	if err != nil {
		return err
	}
	b, err := rt.store.Get(ctx, addr)
	if err != nil {
		return err
	}

	components := make([]common.Address, 0, len(c.StringSlice("component")))
	for _, s := range c.StringSlice("component") {
		a, err := parseAddress(s)
		if err != nil {
			return err
		}
		components = append(components, a)
	}
	if len(components) == 0 {
		if components, err = b.Components(ctx); err != nil {
			return err
		}
	}

	supply, snaps, err := rt.module.CalculateDefaultPositionUnits(ctx, b, components)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "basket %s  supply %s\n", addr.Hex(), domain.FormatAmount(supply))
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tBALANCE\tCURRENT\tCALCULATED\tDRIFT")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.Component.Hex(),
			domain.FormatAmount(s.Balance),
			domain.FormatUnit(s.CurrentRealUnit),
			domain.FormatUnit(s.CalculatedRealUnit),
			domain.FormatUnit(s.Drift()),
		)
	}
	return tw.Flush()
}

func exportXLSX(c *cli.Context) error {
	ctx := c.Context
	cfg := config.Load()
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	var baskets []common.Address
	for _, s := range c.StringSlice("basket") {
		a, err := parseAddress(s)
		if err != nil {
			return err
		}
		baskets = append(baskets, a)
	}

	out := c.String("out")
	svc := export.NewService(rt.store, rt.journal, export.NewXLSXWriter(out), cfg.ExportLimit)
	if err := svc.Export(ctx, baskets...); err != nil {
		return err
	}
	log.Printf("Wrote %s", out)
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
