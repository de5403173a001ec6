package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// UnitDecimals is the fixed-point precision of real units: 1e18 == 1.0 component per basket token.
const UnitDecimals = 18

var (
	// PreciseUnit is 1.0 expressed as a raw real unit.
	PreciseUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(UnitDecimals), nil)

	preciseUnitU256 = uint256.MustFromBig(PreciseUnit)
	maxInt256       = new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 1)
	minInt256       = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

var (
	ErrUnitOverflow  = errors.New("real unit does not fit int256")
	errInvalidAmount = errors.New("invalid amount")
	errInvalidUnit   = errors.New("invalid real unit")
)

// CalculateRealUnit returns floor(balance * PreciseUnit / totalSupply) as a signed real unit.
// The product is computed with a 512-bit intermediate so large balances never wrap.
func CalculateRealUnit(balance, totalSupply *uint256.Int) (*big.Int, error) {
	if totalSupply == nil || totalSupply.IsZero() {
		return nil, ErrZeroSupply
	}
	if balance == nil {
		balance = new(uint256.Int)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(balance, preciseUnitU256, totalSupply)
	if overflow || z.Gt(maxInt256) {
		return nil, ErrUnitOverflow
	}
	return z.ToBig(), nil
}

// ParseUnit converts a human decimal string ("3.5") into a raw real unit (3.5e18).
// More than UnitDecimals fractional digits is rejected rather than rounded.
func ParseUnit(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty", errInvalidUnit)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", errInvalidUnit, value, err)
	}
	shifted := d.Shift(UnitDecimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w %q: more than %d decimal places", errInvalidUnit, value, UnitDecimals)
	}
	raw := shifted.BigInt()
	if raw.Cmp(maxInt256.ToBig()) > 0 || raw.Cmp(minInt256) < 0 {
		return nil, ErrUnitOverflow
	}
	return raw, nil
}

// FormatUnit renders a raw real unit as a decimal string with trailing zeros stripped.
func FormatUnit(unit *big.Int) string {
	if unit == nil {
		return "0"
	}
	return decimal.NewFromBigInt(unit, -UnitDecimals).String()
}

// ParseAmount parses a base-10 token amount (balances, total supply).
func ParseAmount(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", errInvalidAmount, value, err)
	}
	return v, nil
}

// FormatAmount renders a token amount in base 10; nil renders as "0".
func FormatAmount(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}

// UnitDecimal converts a raw real unit to a decimal for reporting.
func UnitDecimal(unit *big.Int) decimal.Decimal {
	if unit == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(unit, -UnitDecimals)
}
