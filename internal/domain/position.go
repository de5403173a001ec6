package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ComponentSnapshot captures one component's balance and units at the start of a call.
// Snapshots are never persisted.
type ComponentSnapshot struct {
	Component          common.Address
	Balance            *uint256.Int
	CurrentRealUnit    *big.Int
	CalculatedRealUnit *big.Int
}

// NeedsAdjustment reports whether the declared unit differs from the balance-implied unit.
func (s ComponentSnapshot) NeedsAdjustment() bool {
	return s.CurrentRealUnit.Cmp(s.CalculatedRealUnit) != 0
}

// Drift returns calculated minus current; positive means the basket holds more than it declares.
func (s ComponentSnapshot) Drift() *big.Int {
	return new(big.Int).Sub(s.CalculatedRealUnit, s.CurrentRealUnit)
}

// ModuleState is the lifecycle state of a module on a basket.
type ModuleState string

const (
	ModuleStateNone        ModuleState = "none"
	ModuleStatePending     ModuleState = "pending"
	ModuleStateInitialized ModuleState = "initialized"
)

// UnitWriter writes default position units inside an atomic update.
type UnitWriter interface {
	SetDefaultPositionRealUnit(ctx context.Context, component common.Address, unit *big.Int) error
}

// Module is the lifecycle hook a basket invokes when a module is removed from it.
type Module interface {
	Address() common.Address
	RemoveModule(ctx context.Context, basket common.Address)
}
