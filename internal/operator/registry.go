package operator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mtlprog/basket/internal/domain"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not registered")
	ErrInvalidOperator  = errors.New("operator is the zero address")
)

// Registry is the owner-managed operator allowlist.
type Registry struct {
	mu    sync.RWMutex
	owner common.Address
	set   *Set
}

// NewRegistry creates a registry owned by owner, optionally pre-populated.
func NewRegistry(owner common.Address, operators ...common.Address) *Registry {
	return &Registry{owner: owner, set: NewSet(operators...)}
}

func (r *Registry) Owner() common.Address { return r.owner }

// Add registers op. Only the owner may add operators.
func (r *Registry) Add(caller, op common.Address) error {
	if !r.isOwner(caller) {
		return domain.ErrNotOwner
	}
	if op == (common.Address{}) {
		return ErrInvalidOperator
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.set.Add(op) {
		return fmt.Errorf("%w: %s", ErrOperatorExists, op.Hex())
	}
	slog.Info("operator added", "operator", op.Hex())
	return nil
}

// Remove deregisters op. Only the owner may remove operators.
func (r *Registry) Remove(caller, op common.Address) error {
	if !r.isOwner(caller) {
		return domain.ErrNotOwner
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.set.Remove(op) {
		return fmt.Errorf("%w: %s", ErrOperatorNotFound, op.Hex())
	}
	slog.Info("operator removed", "operator", op.Hex())
	return nil
}

// isOwner is false for every caller when the registry has no owner.
func (r *Registry) isOwner(caller common.Address) bool {
	return r.owner != (common.Address{}) && caller == r.owner
}

func (r *Registry) IsOperator(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.Contains(addr)
}

func (r *Registry) At(i int) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.At(i)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.Len()
}

// Operators returns all operators in registration order.
func (r *Registry) Operators() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.All()
}
