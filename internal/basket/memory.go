package basket

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/operator"
)

// BalanceHook runs after every balance read, outside the basket lock.
// It models token contracts that call back into the caller.
type BalanceHook func(ctx context.Context, component common.Address)

// Memory is an in-process basket. Values handed out are copies.
type Memory struct {
	mu         sync.RWMutex
	address    common.Address
	manager    common.Address
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	units      map[common.Address]*big.Int
	components *operator.Set
	modules    map[common.Address]domain.ModuleState
	hook       BalanceHook
}

// NewMemory creates an empty basket with zero supply.
func NewMemory(address, manager common.Address) *Memory {
	return &Memory{
		address:    address,
		manager:    manager,
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		units:      make(map[common.Address]*big.Int),
		components: operator.NewSet(),
		modules:    make(map[common.Address]domain.ModuleState),
	}
}

func (b *Memory) Address() common.Address { return b.address }

func (b *Memory) Manager(_ context.Context) (common.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.manager, nil
}

func (b *Memory) SetManager(manager common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manager = manager
}

func (b *Memory) TotalSupply(_ context.Context) (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.supply.Clone(), nil
}

func (b *Memory) SetTotalSupply(supply *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.supply = supply.Clone()
}

func (b *Memory) ExternalBalance(ctx context.Context, component common.Address) (*uint256.Int, error) {
	b.mu.RLock()
	balance := new(uint256.Int)
	if v, ok := b.balances[component]; ok {
		balance.Set(v)
	}
	hook := b.hook
	b.mu.RUnlock()

	if hook != nil {
		hook(ctx, component)
	}
	return balance, nil
}

// SetBalance records the token balance the basket holds of component and
// tracks the component, so a deposit without a declared unit still shows up
// in Components with a zero unit.
func (b *Memory) SetBalance(component common.Address, balance *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[component] = balance.Clone()
	if component != (common.Address{}) {
		b.components.Add(component)
	}
}

func (b *Memory) SetBalanceHook(hook BalanceHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = hook
}

func (b *Memory) DefaultPositionRealUnit(_ context.Context, component common.Address) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.units[component]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

// SetDefaultPositionRealUnit writes a unit directly, outside of any adjustment.
// Used for seeding and by the issuance side.
func (b *Memory) SetDefaultPositionRealUnit(_ context.Context, component common.Address, unit *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setUnit(component, unit)
	return nil
}

func (b *Memory) setUnit(component common.Address, unit *big.Int) {
	b.units[component] = new(big.Int).Set(unit)
	b.components.Add(component)
}

func (b *Memory) Components(_ context.Context) ([]common.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.components.All(), nil
}

func (b *Memory) ModuleState(_ context.Context, module common.Address) (domain.ModuleState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.modules[module]; ok {
		return s, nil
	}
	return domain.ModuleStateNone, nil
}

// AddPendingModule lists module as awaiting initialization.
func (b *Memory) AddPendingModule(module common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modules[module] = domain.ModuleStatePending
}

func (b *Memory) InitializeModule(_ context.Context, module common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.modules[module] != domain.ModuleStatePending {
		return domain.ErrBasketNotPending
	}
	b.modules[module] = domain.ModuleStateInitialized
	return nil
}

// RemoveModule deregisters module and invokes its removal hook. Manager only.
func (b *Memory) RemoveModule(ctx context.Context, caller common.Address, module domain.Module) error {
	if module == nil {
		return domain.ErrInvalidBasket
	}
	b.mu.Lock()
	if caller != b.manager {
		b.mu.Unlock()
		return domain.ErrNotManager
	}
	if b.modules[module.Address()] != domain.ModuleStateInitialized {
		b.mu.Unlock()
		return domain.ErrInvalidBasket
	}
	delete(b.modules, module.Address())
	b.mu.Unlock()

	module.RemoveModule(ctx, b.address)
	return nil
}

// UpdateUnits stages writes and commits them only if fn returns nil.
func (b *Memory) UpdateUnits(ctx context.Context, fn func(w domain.UnitWriter) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := &stagedWriter{}
	if err := fn(w); err != nil {
		return err
	}
	for _, s := range w.writes {
		b.setUnit(s.component, s.unit)
	}
	return nil
}

type stagedWrite struct {
	component common.Address
	unit      *big.Int
}

// stagedWriter keeps writes in order so repeated components resolve last-write-wins.
type stagedWriter struct {
	writes []stagedWrite
}

func (w *stagedWriter) SetDefaultPositionRealUnit(_ context.Context, component common.Address, unit *big.Int) error {
	w.writes = append(w.writes, stagedWrite{component: component, unit: new(big.Int).Set(unit)})
	return nil
}
