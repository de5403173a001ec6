package adjust

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mtlprog/basket/internal/domain"
)

// Initialize registers the module on a basket that listed it as pending.
// Only the basket manager may initialize.
func (m *Module) Initialize(ctx context.Context, basket Basket, caller common.Address) error {
	if err := Guard(m.pauses, ModuleName); err != nil {
		return err
	}
	if basket == nil {
		return domain.ErrInvalidBasket
	}

	manager, err := basket.Manager(ctx)
	if err != nil {
		return fmt.Errorf("reading manager: %w", err)
	}
	if caller != manager || manager == (common.Address{}) {
		return domain.ErrNotManager
	}

	enabled, err := m.controller.IsBasket(ctx, basket.Address())
	if err != nil {
		return fmt.Errorf("checking controller: %w", err)
	}
	if !enabled {
		return domain.ErrBasketNotControllerEnabled
	}

	state, err := basket.ModuleState(ctx, m.address)
	if err != nil {
		return fmt.Errorf("reading module state: %w", err)
	}
	if state != domain.ModuleStatePending {
		return domain.ErrBasketNotPending
	}

	if err := basket.InitializeModule(ctx, m.address); err != nil {
		return fmt.Errorf("initializing module: %w", err)
	}
	slog.Info("module initialized", "basket", basket.Address().Hex(), "module", m.address.Hex())
	return nil
}

// RemoveModule is invoked by a basket when it deregisters the module. All
// module state lives in the basket's ledger, so there is nothing to clean up.
func (m *Module) RemoveModule(_ context.Context, basket common.Address) {
	slog.Info("module removed", "basket", basket.Hex(), "module", m.address.Hex())
}
