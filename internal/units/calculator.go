// Package units computes balance-implied real units for basket components.
package units

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/samber/lo"

	"github.com/mtlprog/basket/internal/domain"
)

// State is the read side of a basket's position ledger.
type State interface {
	TotalSupply(ctx context.Context) (*uint256.Int, error)
	DefaultPositionRealUnit(ctx context.Context, component common.Address) (*big.Int, error)
	ExternalBalance(ctx context.Context, component common.Address) (*uint256.Int, error)
}

// Calculate reads a consistent snapshot of every component and derives its
// balance-implied unit. Output is index-aligned with components. With zero
// total supply the calculated unit equals the current unit.
func Calculate(ctx context.Context, state State, components []common.Address) (*uint256.Int, []domain.ComponentSnapshot, error) {
	if state == nil {
		return nil, nil, domain.ErrInvalidBasket
	}
	if i := lo.IndexOf(components, common.Address{}); i >= 0 {
		return nil, nil, fmt.Errorf("component at index %d: %w", i, domain.ErrInvalidComponent)
	}

	supply, err := state.TotalSupply(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading total supply: %w", err)
	}
	if supply == nil {
		supply = new(uint256.Int)
	}

	snapshots := make([]domain.ComponentSnapshot, len(components))
	for i, component := range components {
		balance, err := state.ExternalBalance(ctx, component)
		if err != nil {
			return nil, nil, fmt.Errorf("reading balance of %s: %w", component.Hex(), err)
		}
		if balance == nil {
			balance = new(uint256.Int)
		}
		current, err := state.DefaultPositionRealUnit(ctx, component)
		if err != nil {
			return nil, nil, fmt.Errorf("reading unit of %s: %w", component.Hex(), err)
		}
		if current == nil {
			current = new(big.Int)
		}

		calculated := new(big.Int).Set(current)
		if !supply.IsZero() {
			calculated, err = domain.CalculateRealUnit(balance, supply)
			if err != nil {
				return nil, nil, fmt.Errorf("calculating unit of %s: %w", component.Hex(), err)
			}
		}

		snapshots[i] = domain.ComponentSnapshot{
			Component:          component,
			Balance:            balance,
			CurrentRealUnit:    current,
			CalculatedRealUnit: calculated,
		}
	}

	return supply, snapshots, nil
}

// Pending returns the snapshots an auto adjustment would raise: calculated strictly above current.
func Pending(snapshots []domain.ComponentSnapshot) []domain.ComponentSnapshot {
	return lo.Filter(snapshots, func(s domain.ComponentSnapshot, _ int) bool {
		return s.CalculatedRealUnit.Cmp(s.CurrentRealUnit) > 0
	})
}
