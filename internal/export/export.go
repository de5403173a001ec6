// Package export writes adjustment history and position drift to spreadsheets.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/mtlprog/basket/internal/basket"
	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/journal"
)

// Sheet names written by Export.
const (
	SheetAdjustments = "ADJUSTMENTS"
	SheetPositions   = "POSITIONS"
	SheetDrift       = "DRIFT"
)

// Sheet is one named tab of rows. The first row is the header.
type Sheet struct {
	Name string
	Rows [][]any
}

// RowWriter replaces the contents of the given sheets.
type RowWriter interface {
	Write(ctx context.Context, sheets ...Sheet) error
}

// Appender is implemented by writers that keep an append-only history sheet.
type Appender interface {
	Append(ctx context.Context, sheet Sheet) error
}

// Journal lists recorded adjustments, newest first.
type Journal interface {
	List(ctx context.Context, basket common.Address, limit int) ([]journal.Record, error)
}

// Service builds export sheets from the journal and a live preview.
type Service struct {
	store   basket.Store
	journal Journal
	writer  RowWriter
	limit   int
	now     func() time.Time
}

// NewService creates a new export Service. limit caps journal rows per basket.
func NewService(store basket.Store, j Journal, writer RowWriter, limit int) *Service {
	return &Service{store: store, journal: j, writer: writer, limit: limit, now: time.Now}
}

// Export rewrites the adjustment and position sheets for the given baskets
// (every enabled basket when none are given) and appends a drift row per
// component when the writer keeps history.
func (s *Service) Export(ctx context.Context, baskets ...common.Address) error {
	if len(baskets) == 0 {
		all, err := s.store.List(ctx)
		if err != nil {
			return fmt.Errorf("listing baskets: %w", err)
		}
		baskets = all
	}

	at := s.now().UTC()
	var (
		records   []journal.Record
		positions []positionRow
	)
	for _, addr := range baskets {
		recs, err := s.journal.List(ctx, addr, s.limit)
		if err != nil {
			return fmt.Errorf("listing adjustments of %s: %w", addr.Hex(), err)
		}
		records = append(records, recs...)

		b, err := s.store.Get(ctx, addr)
		if err != nil {
			return fmt.Errorf("loading basket: %w", err)
		}
		_, snaps, err := basket.Preview(ctx, b)
		if err != nil {
			// A basket with zero supply or an overflow still exports its history.
			slog.Warn("export: preview unavailable", "basket", addr.Hex(), "error", err)
			continue
		}
		positions = append(positions, lo.Map(snaps, func(snap domain.ComponentSnapshot, _ int) positionRow {
			return positionRow{basket: addr, snapshot: snap}
		})...)
	}

	if err := s.writer.Write(ctx,
		Sheet{Name: SheetAdjustments, Rows: buildAdjustments(records)},
		Sheet{Name: SheetPositions, Rows: buildPositions(positions)},
	); err != nil {
		return fmt.Errorf("writing sheets: %w", err)
	}

	if appender, ok := s.writer.(Appender); ok && len(positions) > 0 {
		if err := appender.Append(ctx, Sheet{Name: SheetDrift, Rows: buildDriftRows(positions, at)}); err != nil {
			return fmt.Errorf("appending drift: %w", err)
		}
	}

	slog.Info("export complete", "baskets", len(baskets), "adjustments", len(records), "positions", len(positions))
	return nil
}

// Run implements the keeper's after-run hook.
func (s *Service) Run(ctx context.Context) error {
	return s.Export(ctx)
}

type positionRow struct {
	basket   common.Address
	snapshot domain.ComponentSnapshot
}

// buildAdjustments builds the ADJUSTMENTS sheet.
// Columns: Time | Batch | Basket | Component | Balance | Previous | New | Change
func buildAdjustments(records []journal.Record) [][]any {
	data := make([][]any, 0, len(records)+1)
	data = append(data, []any{"Time", "Batch", "Basket", "Component", "Balance", "Previous", "New", "Change"})

	for _, r := range records {
		prev := domain.UnitDecimal(r.PreviousUnit)
		next := domain.UnitDecimal(r.NewUnit)
		data = append(data, []any{
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.BatchID.String(),
			r.Basket.Hex(),
			r.Component.Hex(),
			domain.FormatAmount(r.Balance),
			prev.String(),
			next.String(),
			next.Sub(prev).String(),
		})
	}
	return data
}

// buildPositions builds the POSITIONS sheet.
// Columns: Basket | Component | Balance | Current | Calculated | Drift | Pending
func buildPositions(rows []positionRow) [][]any {
	data := make([][]any, 0, len(rows)+1)
	data = append(data, []any{"Basket", "Component", "Balance", "Current", "Calculated", "Drift", "Pending"})

	for _, r := range rows {
		snap := r.snapshot
		pending := 0
		if snap.Drift().Sign() > 0 {
			pending = 1
		}
		data = append(data, []any{
			r.basket.Hex(),
			snap.Component.Hex(),
			domain.FormatAmount(snap.Balance),
			domain.FormatUnit(snap.CurrentRealUnit),
			domain.FormatUnit(snap.CalculatedRealUnit),
			domain.FormatUnit(snap.Drift()),
			pending,
		})
	}
	return data
}
