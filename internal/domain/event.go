package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const EventTypeUnitAdjusted = "basket.unit_adjusted"

// UnitAdjusted is emitted once per accepted component change, in request order.
type UnitAdjusted struct {
	Basket       common.Address
	Component    common.Address
	Balance      *uint256.Int
	PreviousUnit *big.Int
	NewUnit      *big.Int
}

func (UnitAdjusted) EventType() string { return EventTypeUnitAdjusted }

// Attributes flattens the event for indexers and logs.
func (e UnitAdjusted) Attributes() map[string]string {
	return map[string]string{
		"basket":       e.Basket.Hex(),
		"component":    e.Component.Hex(),
		"balance":      FormatAmount(e.Balance),
		"previousUnit": e.PreviousUnit.String(),
		"newUnit":      e.NewUnit.String(),
	}
}
