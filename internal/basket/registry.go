package basket

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mtlprog/basket/internal/operator"
)

// Registry is the in-process controller: the set of enabled baskets.
type Registry struct {
	mu      sync.RWMutex
	order   *operator.Set
	baskets map[common.Address]Basket
}

func NewRegistry() *Registry {
	return &Registry{order: operator.NewSet(), baskets: make(map[common.Address]Basket)}
}

// Add enables b on the controller, replacing any basket with the same address.
func (r *Registry) Add(b Basket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order.Add(b.Address())
	r.baskets[b.Address()] = b
}

// Disable removes a basket from the controller.
func (r *Registry) Disable(addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order.Remove(addr)
	delete(r.baskets, addr)
}

func (r *Registry) IsBasket(_ context.Context, addr common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.baskets[addr]
	return ok, nil
}

func (r *Registry) Get(_ context.Context, addr common.Address) (Basket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.baskets[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr.Hex())
	}
	return b, nil
}

// List returns enabled baskets in registration order.
func (r *Registry) List(_ context.Context) ([]common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.order.All(), nil
}
