package basket

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/basket/internal/domain"
)

// PgStore is the PostgreSQL-backed controller and basket ledger.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL basket store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) IsBasket(ctx context.Context, addr common.Address) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx,
		`SELECT enabled FROM baskets WHERE address = $1`, addr.Hex()).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking basket %s: %w", addr.Hex(), err)
	}
	return enabled, nil
}

func (s *PgStore) Get(ctx context.Context, addr common.Address) (Basket, error) {
	ok, err := s.IsBasket(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr.Hex())
	}
	return &PgBasket{pool: s.pool, address: addr}, nil
}

func (s *PgStore) List(ctx context.Context) ([]common.Address, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address FROM baskets WHERE enabled ORDER BY created_at, address`)
	if err != nil {
		return nil, fmt.Errorf("listing baskets: %w", err)
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scanning basket: %w", err)
		}
		out = append(out, common.HexToAddress(a))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating baskets: %w", err)
	}
	return out, nil
}

// ApplySeed upserts every basket in the seed in one transaction.
func (s *PgStore) ApplySeed(ctx context.Context, seed Seed, module common.Address) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, bs := range seed.Baskets {
			addr := common.HexToAddress(bs.Address).Hex()
			supply, err := domain.ParseAmount(bs.TotalSupply)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO baskets (address, manager, total_supply, enabled)
				 VALUES ($1, $2, $3::numeric, TRUE)
				 ON CONFLICT (address) DO UPDATE SET manager = $2, total_supply = $3::numeric, enabled = TRUE`,
				addr, common.HexToAddress(bs.Manager).Hex(), supply.Dec()); err != nil {
				return fmt.Errorf("seeding basket %s: %w", addr, err)
			}
			for _, ps := range bs.Positions {
				p, err := ps.parse()
				if err != nil {
					return err
				}
				if _, err := tx.Exec(ctx,
					`INSERT INTO basket_balances (basket, component, balance)
					 VALUES ($1, $2, $3::numeric)
					 ON CONFLICT (basket, component) DO UPDATE SET balance = $3::numeric`,
					addr, p.component.Hex(), p.balance.Dec()); err != nil {
					return fmt.Errorf("seeding balance %s/%s: %w", addr, p.component.Hex(), err)
				}
				if err := upsertUnit(ctx, tx, addr, p.component, p.unit); err != nil {
					return err
				}
			}
			if bs.Module != "" {
				if _, err := tx.Exec(ctx,
					`INSERT INTO basket_modules (basket, module, state)
					 VALUES ($1, $2, $3)
					 ON CONFLICT (basket, module) DO UPDATE SET state = $3`,
					addr, module.Hex(), bs.Module); err != nil {
					return fmt.Errorf("seeding module state %s: %w", addr, err)
				}
			}
		}
		return nil
	})
}

// PgBasket is one basket's view of the PostgreSQL ledger.
type PgBasket struct {
	pool    *pgxpool.Pool
	address common.Address
}

func (b *PgBasket) Address() common.Address { return b.address }

func (b *PgBasket) Manager(ctx context.Context) (common.Address, error) {
	var m string
	err := b.pool.QueryRow(ctx,
		`SELECT manager FROM baskets WHERE address = $1`, b.address.Hex()).Scan(&m)
	if err != nil {
		return common.Address{}, fmt.Errorf("getting manager of %s: %w", b.address.Hex(), err)
	}
	return common.HexToAddress(m), nil
}

func (b *PgBasket) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	var v string
	err := b.pool.QueryRow(ctx,
		`SELECT total_supply::text FROM baskets WHERE address = $1`, b.address.Hex()).Scan(&v)
	if err != nil {
		return nil, fmt.Errorf("getting supply of %s: %w", b.address.Hex(), err)
	}
	return domain.ParseAmount(v)
}

func (b *PgBasket) ExternalBalance(ctx context.Context, component common.Address) (*uint256.Int, error) {
	var v string
	err := b.pool.QueryRow(ctx,
		`SELECT balance::text FROM basket_balances WHERE basket = $1 AND component = $2`,
		b.address.Hex(), component.Hex()).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, fmt.Errorf("getting balance of %s: %w", component.Hex(), err)
	}
	return domain.ParseAmount(v)
}

func (b *PgBasket) DefaultPositionRealUnit(ctx context.Context, component common.Address) (*big.Int, error) {
	var v string
	err := b.pool.QueryRow(ctx,
		`SELECT real_unit::text FROM basket_positions WHERE basket = $1 AND component = $2`,
		b.address.Hex(), component.Hex()).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("getting unit of %s: %w", component.Hex(), err)
	}
	u, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("parsing unit %q of %s", v, component.Hex())
	}
	return u, nil
}

func (b *PgBasket) Components(ctx context.Context) ([]common.Address, error) {
	// Positions first in creation order, then components that only hold a balance.
	rows, err := b.pool.Query(ctx, `
		SELECT component FROM (
			SELECT component, 0 AS src, id AS ord FROM basket_positions WHERE basket = $1
			UNION ALL
			SELECT bb.component, 1, 0 FROM basket_balances bb
			WHERE bb.basket = $1 AND NOT EXISTS (
				SELECT 1 FROM basket_positions p WHERE p.basket = bb.basket AND p.component = bb.component
			)
		) c
		ORDER BY src, ord, component`, b.address.Hex())
	if err != nil {
		return nil, fmt.Errorf("listing components of %s: %w", b.address.Hex(), err)
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning component: %w", err)
		}
		out = append(out, common.HexToAddress(c))
	}
	return out, rows.Err()
}

func (b *PgBasket) ModuleState(ctx context.Context, module common.Address) (domain.ModuleState, error) {
	var state string
	err := b.pool.QueryRow(ctx,
		`SELECT state FROM basket_modules WHERE basket = $1 AND module = $2`,
		b.address.Hex(), module.Hex()).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ModuleStateNone, nil
		}
		return "", fmt.Errorf("getting module state: %w", err)
	}
	return domain.ModuleState(state), nil
}

func (b *PgBasket) InitializeModule(ctx context.Context, module common.Address) error {
	tag, err := b.pool.Exec(ctx,
		`UPDATE basket_modules SET state = $3
		 WHERE basket = $1 AND module = $2 AND state = $4`,
		b.address.Hex(), module.Hex(), string(domain.ModuleStateInitialized), string(domain.ModuleStatePending))
	if err != nil {
		return fmt.Errorf("initializing module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBasketNotPending
	}
	return nil
}

func (b *PgBasket) RemoveModule(ctx context.Context, caller common.Address, module domain.Module) error {
	if module == nil {
		return domain.ErrInvalidBasket
	}
	manager, err := b.Manager(ctx)
	if err != nil {
		return err
	}
	if caller != manager {
		return domain.ErrNotManager
	}
	tag, err := b.pool.Exec(ctx,
		`DELETE FROM basket_modules WHERE basket = $1 AND module = $2 AND state = $3`,
		b.address.Hex(), module.Address().Hex(), string(domain.ModuleStateInitialized))
	if err != nil {
		return fmt.Errorf("removing module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidBasket
	}
	module.RemoveModule(ctx, b.address)
	return nil
}

// UpdateUnits runs every write in a single transaction.
func (b *PgBasket) UpdateUnits(ctx context.Context, fn func(w domain.UnitWriter) error) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return fn(&pgUnitWriter{tx: tx, basket: b.address.Hex()})
	})
}

type pgUnitWriter struct {
	tx     pgx.Tx
	basket string
}

func (w *pgUnitWriter) SetDefaultPositionRealUnit(ctx context.Context, component common.Address, unit *big.Int) error {
	return upsertUnit(ctx, w.tx, w.basket, component, unit)
}

func upsertUnit(ctx context.Context, tx pgx.Tx, basket string, component common.Address, unit *big.Int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO basket_positions (basket, component, real_unit, updated_at)
		 VALUES ($1, $2, $3::numeric, NOW())
		 ON CONFLICT (basket, component) DO UPDATE SET real_unit = $3::numeric, updated_at = NOW()`,
		basket, component.Hex(), unit.String())
	if err != nil {
		return fmt.Errorf("writing unit of %s: %w", component.Hex(), err)
	}
	return nil
}
