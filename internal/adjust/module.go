// Package adjust validates and applies real-unit adjustments to basket positions.
package adjust

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/units"
)

// ModuleName identifies this module to pause controls.
const ModuleName = "position-adjuster"

// Basket is the slice of basket state the module reads and writes.
type Basket interface {
	units.State
	Address() common.Address
	Manager(ctx context.Context) (common.Address, error)
	ModuleState(ctx context.Context, module common.Address) (domain.ModuleState, error)
	InitializeModule(ctx context.Context, module common.Address) error
	// UpdateUnits applies every write made through the writer atomically, or none if fn fails.
	UpdateUnits(ctx context.Context, fn func(w domain.UnitWriter) error) error
}

// Controller reports whether a basket is enabled on the controller.
type Controller interface {
	IsBasket(ctx context.Context, basket common.Address) (bool, error)
}

// OperatorSet reports operator membership.
type OperatorSet interface {
	IsOperator(addr common.Address) bool
}

// EventSink receives the events of a committed adjustment batch.
type EventSink interface {
	Publish(ctx context.Context, events []domain.UnitAdjusted)
}

// RejectionObserver is told about every failed adjustment.
type RejectionObserver interface {
	ObserveRejection(basket common.Address, err error)
}

// Module is the position adjuster. It holds no per-basket state of its own.
type Module struct {
	address    common.Address
	controller Controller
	operators  OperatorSet
	pauses     PauseView
	sinks      []EventSink
	observer   RejectionObserver

	// mu is held for the whole of Adjust; TryLock turns nested or concurrent calls into errors.
	mu sync.Mutex
}

// NewModule creates a module. controller and operators are required.
func NewModule(address common.Address, controller Controller, operators OperatorSet) *Module {
	if controller == nil {
		panic("adjust.NewModule: controller is nil")
	}
	if operators == nil {
		panic("adjust.NewModule: operators is nil")
	}
	return &Module{address: address, controller: controller, operators: operators}
}

func (m *Module) SetPauses(p PauseView) { m.pauses = p }

func (m *Module) SetObserver(o RejectionObserver) { m.observer = o }

// AddSink registers a sink for committed events. Sinks run in registration order.
func (m *Module) AddSink(s EventSink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Address is the module identity registered on baskets.
func (m *Module) Address() common.Address { return m.address }

// CalculateDefaultPositionUnits previews balance-implied units without mutating anything.
func (m *Module) CalculateDefaultPositionUnits(ctx context.Context, basket Basket, components []common.Address) (*uint256.Int, []domain.ComponentSnapshot, error) {
	if basket == nil {
		return nil, nil, domain.ErrInvalidBasket
	}
	return units.Calculate(ctx, basket, components)
}

// Adjust raises the declared units of components towards their balance-implied
// units. A zero request means "use the calculated unit". The whole batch is
// validated against one snapshot before anything is written; any failure leaves
// the ledger untouched. Committed changes are returned in request order.
func (m *Module) Adjust(ctx context.Context, basket Basket, caller common.Address, components []common.Address, requested []*big.Int) ([]domain.UnitAdjusted, error) {
	if !m.mu.TryLock() {
		return nil, m.reject(basket, domain.ErrReentrantCall)
	}
	defer m.mu.Unlock()

	events, err := m.adjust(ctx, basket, caller, components, requested)
	if err != nil {
		return nil, m.reject(basket, err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	for _, e := range events {
		slog.Info("unit adjusted",
			"basket", e.Basket.Hex(),
			"component", e.Component.Hex(),
			"previous", domain.FormatUnit(e.PreviousUnit),
			"new", domain.FormatUnit(e.NewUnit),
		)
	}
	for _, s := range m.sinks {
		s.Publish(ctx, events)
	}
	return events, nil
}

func (m *Module) adjust(ctx context.Context, basket Basket, caller common.Address, components []common.Address, requested []*big.Int) ([]domain.UnitAdjusted, error) {
	if err := Guard(m.pauses, ModuleName); err != nil {
		return nil, err
	}
	if basket == nil {
		return nil, domain.ErrInvalidBasket
	}
	if err := m.authorize(ctx, basket, caller); err != nil {
		return nil, err
	}
	if err := m.requireValidBasket(ctx, basket); err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return nil, domain.ErrEmptyComponentList
	}
	if len(requested) != len(components) {
		return nil, fmt.Errorf("%w: %d components, %d units", domain.ErrLengthMismatch, len(components), len(requested))
	}

	supply, snapshots, err := units.Calculate(ctx, basket, components)
	if err != nil {
		return nil, err
	}
	if supply.IsZero() {
		return nil, domain.ErrZeroSupply
	}

	var events []domain.UnitAdjusted
	for i, snap := range snapshots {
		newUnit, change, err := decide(snap, requested[i])
		if err != nil {
			return nil, fmt.Errorf("component %s (index %d): %w", snap.Component.Hex(), i, err)
		}
		if !change {
			continue
		}
		events = append(events, domain.UnitAdjusted{
			Basket:       basket.Address(),
			Component:    snap.Component,
			Balance:      snap.Balance,
			PreviousUnit: snap.CurrentRealUnit,
			NewUnit:      newUnit,
		})
	}
	if len(events) == 0 {
		return nil, nil
	}

	err = basket.UpdateUnits(ctx, func(w domain.UnitWriter) error {
		for _, e := range events {
			if err := w.SetDefaultPositionRealUnit(ctx, e.Component, e.NewUnit); err != nil {
				return fmt.Errorf("writing unit of %s: %w", e.Component.Hex(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("applying adjustments: %w", err)
	}
	return events, nil
}

// decide applies the per-component rule against the pre-call snapshot.
// It returns change=false for components already at their calculated unit.
func decide(snap domain.ComponentSnapshot, req *big.Int) (*big.Int, bool, error) {
	if !snap.NeedsAdjustment() {
		return nil, false, nil
	}
	if req == nil {
		req = new(big.Int)
	}
	if req.Sign() < 0 {
		return nil, false, domain.ErrNegativeRequest
	}

	newUnit := new(big.Int).Set(req)
	if req.Sign() == 0 {
		newUnit.Set(snap.CalculatedRealUnit)
	}
	// Applies to auto mode too: a balance below the declared unit is never written as a decrease.
	if newUnit.Cmp(snap.CurrentRealUnit) <= 0 {
		return nil, false, domain.ErrBelowCurrent
	}
	if newUnit.Cmp(snap.CalculatedRealUnit) > 0 {
		return nil, false, domain.ErrAboveCalculated
	}
	return newUnit, true, nil
}

func (m *Module) authorize(ctx context.Context, basket Basket, caller common.Address) error {
	if m.operators.IsOperator(caller) {
		return nil
	}
	manager, err := basket.Manager(ctx)
	if err != nil {
		return fmt.Errorf("reading manager: %w", err)
	}
	if caller != manager || manager == (common.Address{}) {
		return domain.ErrUnauthorized
	}
	return nil
}

func (m *Module) requireValidBasket(ctx context.Context, basket Basket) error {
	enabled, err := m.controller.IsBasket(ctx, basket.Address())
	if err != nil {
		return fmt.Errorf("checking controller: %w", err)
	}
	if !enabled {
		return domain.ErrInvalidBasket
	}
	state, err := basket.ModuleState(ctx, m.address)
	if err != nil {
		return fmt.Errorf("reading module state: %w", err)
	}
	if state != domain.ModuleStateInitialized {
		return domain.ErrInvalidBasket
	}
	return nil
}

func (m *Module) reject(basket Basket, err error) error {
	if m.observer != nil {
		var addr common.Address
		if basket != nil {
			addr = basket.Address()
		}
		m.observer.ObserveRejection(addr, err)
	}
	return err
}
