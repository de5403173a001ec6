// Package journal records committed unit adjustments for audit and export.
package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mtlprog/basket/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Service turns published adjustment events into journal records.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Publish stores one batch of committed events. The ledger write has already
// happened, so a failure here is logged and not returned.
func (s *Service) Publish(ctx context.Context, events []domain.UnitAdjusted) {
	if len(events) == 0 {
		return
	}
	batchID := uuid.New()
	at := s.now().UTC()

	records := lo.Map(events, func(e domain.UnitAdjusted, _ int) Record {
		return Record{
			BatchID:      batchID,
			Basket:       e.Basket,
			Component:    e.Component,
			Balance:      e.Balance,
			PreviousUnit: e.PreviousUnit,
			NewUnit:      e.NewUnit,
			CreatedAt:    at,
		}
	})

	if err := s.repo.Save(ctx, records); err != nil {
		slog.Error("failed to journal adjustments",
			"batch", batchID.String(),
			"basket", events[0].Basket.Hex(),
			"count", len(records),
			"error", err,
		)
		return
	}
	slog.Debug("adjustments journaled", "batch", batchID.String(), "count", len(records))
}

// List returns the newest records for a basket. limit <= 0 selects the default.
func (s *Service) List(ctx context.Context, basket common.Address, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, basket, limit)
}
