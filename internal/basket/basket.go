// Package basket holds basket position ledgers and the controller registry of enabled baskets.
package basket

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mtlprog/basket/internal/domain"
)

// ErrNotFound indicates that the basket is not registered with the controller.
var ErrNotFound = errors.New("basket not found")

// Basket is a basket's ledger, manager and module lifecycle in one accessor.
type Basket interface {
	Address() common.Address
	Manager(ctx context.Context) (common.Address, error)
	TotalSupply(ctx context.Context) (*uint256.Int, error)
	ExternalBalance(ctx context.Context, component common.Address) (*uint256.Int, error)
	DefaultPositionRealUnit(ctx context.Context, component common.Address) (*big.Int, error)
	Components(ctx context.Context) ([]common.Address, error)
	ModuleState(ctx context.Context, module common.Address) (domain.ModuleState, error)
	InitializeModule(ctx context.Context, module common.Address) error
	RemoveModule(ctx context.Context, caller common.Address, module domain.Module) error
	UpdateUnits(ctx context.Context, fn func(w domain.UnitWriter) error) error
}

// Store looks up controller-enabled baskets. Implemented by Registry and PgStore.
type Store interface {
	IsBasket(ctx context.Context, addr common.Address) (bool, error)
	Get(ctx context.Context, addr common.Address) (Basket, error)
	List(ctx context.Context) ([]common.Address, error)
}
