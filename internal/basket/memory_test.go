package basket

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mtlprog/basket/internal/domain"
)

var (
	basketAddr = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	managerA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	moduleAddr = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	compX      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	compY      = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

type mockModule struct {
	removedFrom []common.Address
}

func (m *mockModule) Address() common.Address { return moduleAddr }

func (m *mockModule) RemoveModule(_ context.Context, basket common.Address) {
	m.removedFrom = append(m.removedFrom, basket)
}

func TestMemoryUpdateUnitsCommits(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)

	err := b.UpdateUnits(ctx, func(w domain.UnitWriter) error {
		if err := w.SetDefaultPositionRealUnit(ctx, compX, big.NewInt(5)); err != nil {
			return err
		}
		return w.SetDefaultPositionRealUnit(ctx, compY, big.NewInt(7))
	})
	if err != nil {
		t.Fatalf("UpdateUnits: %v", err)
	}

	if got, _ := b.DefaultPositionRealUnit(ctx, compX); got.Int64() != 5 {
		t.Errorf("unit X = %s, want 5", got)
	}
	comps, _ := b.Components(ctx)
	if len(comps) != 2 || comps[0] != compX || comps[1] != compY {
		t.Errorf("Components() = %v, want [X Y]", comps)
	}
}

func TestMemoryUpdateUnitsRollsBack(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)
	_ = b.SetDefaultPositionRealUnit(ctx, compX, big.NewInt(1))

	err := b.UpdateUnits(ctx, func(w domain.UnitWriter) error {
		_ = w.SetDefaultPositionRealUnit(ctx, compX, big.NewInt(9))
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got, _ := b.DefaultPositionRealUnit(ctx, compX); got.Int64() != 1 {
		t.Errorf("unit X = %s after failed update, want 1", got)
	}
}

func TestMemoryUpdateUnitsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)

	_ = b.UpdateUnits(ctx, func(w domain.UnitWriter) error {
		_ = w.SetDefaultPositionRealUnit(ctx, compX, big.NewInt(2))
		return w.SetDefaultPositionRealUnit(ctx, compX, big.NewInt(3))
	})
	if got, _ := b.DefaultPositionRealUnit(ctx, compX); got.Int64() != 3 {
		t.Errorf("unit X = %s, want 3", got)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)
	_ = b.SetDefaultPositionRealUnit(ctx, compX, big.NewInt(4))
	b.SetBalance(compX, uint256.NewInt(10))

	u, _ := b.DefaultPositionRealUnit(ctx, compX)
	u.SetInt64(99)
	bal, _ := b.ExternalBalance(ctx, compX)
	bal.SetUint64(99)

	if got, _ := b.DefaultPositionRealUnit(ctx, compX); got.Int64() != 4 {
		t.Errorf("unit mutated through returned pointer: %s", got)
	}
	if got, _ := b.ExternalBalance(ctx, compX); got.Uint64() != 10 {
		t.Errorf("balance mutated through returned pointer: %s", got.Dec())
	}
}

func TestMemoryUnknownComponentIsZero(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)
	if got, _ := b.ExternalBalance(ctx, compY); !got.IsZero() {
		t.Errorf("balance = %s, want 0", got.Dec())
	}
	if got, _ := b.DefaultPositionRealUnit(ctx, compY); got.Sign() != 0 {
		t.Errorf("unit = %s, want 0", got)
	}
}

func TestMemoryBalanceTracksComponent(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)
	_ = b.SetDefaultPositionRealUnit(ctx, compX, big.NewInt(1))
	b.SetBalance(compY, uint256.NewInt(5))
	b.SetBalance(compX, uint256.NewInt(2))
	b.SetBalance(common.Address{}, uint256.NewInt(1))

	comps, _ := b.Components(ctx)
	if len(comps) != 2 || comps[0] != compX || comps[1] != compY {
		t.Errorf("Components() = %v, want [X Y]", comps)
	}
	if got, _ := b.DefaultPositionRealUnit(ctx, compY); got.Sign() != 0 {
		t.Errorf("unit Y = %s, want 0", got)
	}
}

func TestMemoryBalanceHookRunsOutsideLock(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)
	b.SetBalance(compX, uint256.NewInt(10))

	called := false
	b.SetBalanceHook(func(ctx context.Context, _ common.Address) {
		called = true
		// Re-entering the basket must not deadlock.
		_, _ = b.TotalSupply(ctx)
		b.SetBalance(compX, uint256.NewInt(11))
	})

	got, _ := b.ExternalBalance(ctx, compX)
	if !called {
		t.Fatal("hook not called")
	}
	if got.Uint64() != 10 {
		t.Errorf("balance = %d, want value read before hook", got.Uint64())
	}
}

func TestMemoryModuleLifecycle(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)
	mod := &mockModule{}

	if s, _ := b.ModuleState(ctx, moduleAddr); s != domain.ModuleStateNone {
		t.Errorf("state = %q, want none", s)
	}
	if err := b.InitializeModule(ctx, moduleAddr); !errors.Is(err, domain.ErrBasketNotPending) {
		t.Errorf("initialize without pending: %v", err)
	}

	b.AddPendingModule(moduleAddr)
	if err := b.InitializeModule(ctx, moduleAddr); err != nil {
		t.Fatalf("InitializeModule: %v", err)
	}
	if s, _ := b.ModuleState(ctx, moduleAddr); s != domain.ModuleStateInitialized {
		t.Errorf("state = %q, want initialized", s)
	}

	if err := b.RemoveModule(ctx, compX, mod); !errors.Is(err, domain.ErrNotManager) {
		t.Errorf("remove by non-manager: %v", err)
	}
	if err := b.RemoveModule(ctx, managerA, mod); err != nil {
		t.Fatalf("RemoveModule: %v", err)
	}
	if len(mod.removedFrom) != 1 || mod.removedFrom[0] != basketAddr {
		t.Errorf("hook calls = %v", mod.removedFrom)
	}
	if s, _ := b.ModuleState(ctx, moduleAddr); s != domain.ModuleStateNone {
		t.Errorf("state after removal = %q, want none", s)
	}
}

func TestMemoryRemoveNilModule(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(basketAddr, managerA)
	b.AddPendingModule(moduleAddr)
	_ = b.InitializeModule(ctx, moduleAddr)

	if err := b.RemoveModule(ctx, managerA, nil); !errors.Is(err, domain.ErrInvalidBasket) {
		t.Errorf("error = %v, want ErrInvalidBasket", err)
	}
	if s, _ := b.ModuleState(ctx, moduleAddr); s != domain.ModuleStateInitialized {
		t.Errorf("state = %q, want initialized", s)
	}
}
