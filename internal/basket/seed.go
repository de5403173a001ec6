package basket

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/operator"
)

// Seed describes the initial operator allowlist and baskets, loaded from YAML.
type Seed struct {
	Owner     string       `yaml:"owner"`
	Operators []string     `yaml:"operators"`
	Baskets   []BasketSeed `yaml:"baskets"`
}

// BasketSeed describes one basket. Module is "pending", "initialized" or empty.
type BasketSeed struct {
	Address     string         `yaml:"address"`
	Manager     string         `yaml:"manager"`
	TotalSupply string         `yaml:"totalSupply"`
	Module      string         `yaml:"module"`
	Positions   []PositionSeed `yaml:"positions"`
}

// PositionSeed holds a raw token balance and a decimal real unit ("1.5").
type PositionSeed struct {
	Component string `yaml:"component"`
	Balance   string `yaml:"balance"`
	RealUnit  string `yaml:"realUnit"`
}

var errInvalidSeed = errors.New("invalid seed")

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("reading seed %s: %w", path, err)
	}
	var s Seed
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Seed{}, fmt.Errorf("parsing seed %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Seed{}, err
	}
	return s, nil
}

// Validate checks every address and number in the seed.
func (s Seed) Validate() error {
	if !isAddress(s.Owner) {
		return fmt.Errorf("%w: owner %q", errInvalidSeed, s.Owner)
	}
	if bad, ok := lo.Find(s.Operators, func(a string) bool { return !isAddress(a) }); ok {
		return fmt.Errorf("%w: operator %q", errInvalidSeed, bad)
	}
	for _, b := range s.Baskets {
		if !isAddress(b.Address) || !isAddress(b.Manager) {
			return fmt.Errorf("%w: basket %q manager %q", errInvalidSeed, b.Address, b.Manager)
		}
		if _, err := domain.ParseAmount(b.TotalSupply); err != nil {
			return fmt.Errorf("%w: basket %s supply: %v", errInvalidSeed, b.Address, err)
		}
		switch domain.ModuleState(b.Module) {
		case "", domain.ModuleStatePending, domain.ModuleStateInitialized:
		default:
			return fmt.Errorf("%w: basket %s module state %q", errInvalidSeed, b.Address, b.Module)
		}
		for _, p := range b.Positions {
			if _, err := p.parse(); err != nil {
				return fmt.Errorf("%w: basket %s: %v", errInvalidSeed, b.Address, err)
			}
		}
	}
	return nil
}

// OperatorRegistry builds the operator allowlist described by the seed.
func (s Seed) OperatorRegistry() *operator.Registry {
	return operator.NewRegistry(common.HexToAddress(s.Owner), lo.Map(s.Operators, func(a string, _ int) common.Address {
		return common.HexToAddress(a)
	})...)
}

// MemoryRegistry builds in-memory baskets with module state recorded for module.
func (s Seed) MemoryRegistry(module common.Address) (*Registry, error) {
	reg := NewRegistry()
	for _, bs := range s.Baskets {
		b := NewMemory(common.HexToAddress(bs.Address), common.HexToAddress(bs.Manager))
		supply, err := domain.ParseAmount(bs.TotalSupply)
		if err != nil {
			return nil, err
		}
		b.SetTotalSupply(supply)
		for _, ps := range bs.Positions {
			p, err := ps.parse()
			if err != nil {
				return nil, err
			}
			b.SetBalance(p.component, p.balance)
			_ = b.SetDefaultPositionRealUnit(context.Background(), p.component, p.unit)
		}
		switch domain.ModuleState(bs.Module) {
		case domain.ModuleStatePending:
			b.AddPendingModule(module)
		case domain.ModuleStateInitialized:
			b.AddPendingModule(module)
			_ = b.InitializeModule(context.Background(), module)
		}
		reg.Add(b)
	}
	return reg, nil
}

type position struct {
	component common.Address
	balance   *uint256.Int
	unit      *big.Int
}

func (p PositionSeed) parse() (position, error) {
	if !isAddress(p.Component) || common.HexToAddress(p.Component) == (common.Address{}) {
		return position{}, fmt.Errorf("component %q", p.Component)
	}
	balance, err := domain.ParseAmount(p.Balance)
	if err != nil {
		return position{}, err
	}
	unit := new(big.Int)
	if p.RealUnit != "" {
		if unit, err = domain.ParseUnit(p.RealUnit); err != nil {
			return position{}, err
		}
	}
	return position{component: common.HexToAddress(p.Component), balance: balance, unit: unit}, nil
}

func isAddress(s string) bool {
	return common.IsHexAddress(s)
}
