package basket

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/units"
)

// Preview calculates every registered component of b without writing anything.
func Preview(ctx context.Context, b Basket) (*uint256.Int, []domain.ComponentSnapshot, error) {
	components, err := b.Components(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing components of %s: %w", b.Address().Hex(), err)
	}
	return units.Calculate(ctx, b, components)
}
