package journal

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/basket/internal/domain"
)

// Record is one applied unit change. Records written by the same Adjust call share a BatchID.
type Record struct {
	ID           int64
	BatchID      uuid.UUID
	Basket       common.Address
	Component    common.Address
	Balance      *uint256.Int
	PreviousUnit *big.Int
	NewUnit      *big.Int
	CreatedAt    time.Time
}

// Repository defines persistent storage for adjustment records.
type Repository interface {
	Save(ctx context.Context, records []Record) error
	List(ctx context.Context, basket common.Address, limit int) ([]Record, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL journal repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Save inserts a batch in one transaction.
func (r *PgRepository) Save(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(
				`INSERT INTO unit_adjustments (batch_id, basket, component, balance, previous_unit, new_unit, created_at)
				 VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)`,
				rec.BatchID, rec.Basket.Hex(), rec.Component.Hex(),
				rec.Balance.Dec(), rec.PreviousUnit.String(), rec.NewUnit.String(), rec.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("saving adjustments: %w", err)
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, basket common.Address, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, batch_id, basket, component, balance::text, previous_unit::text, new_unit::text, created_at
		 FROM unit_adjustments
		 WHERE basket = $1
		 ORDER BY id DESC
		 LIMIT $2`, basket.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing adjustments: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                           Record
			basketHex, componentHex       string
			balance, previous, newUnitStr string
		)
		if err := rows.Scan(&rec.ID, &rec.BatchID, &basketHex, &componentHex, &balance, &previous, &newUnitStr, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning adjustment: %w", err)
		}
		rec.Basket = common.HexToAddress(basketHex)
		rec.Component = common.HexToAddress(componentHex)
		if rec.Balance, err = domain.ParseAmount(balance); err != nil {
			return nil, fmt.Errorf("adjustment %d balance: %w", rec.ID, err)
		}
		var ok bool
		if rec.PreviousUnit, ok = new(big.Int).SetString(previous, 10); !ok {
			return nil, fmt.Errorf("adjustment %d previous unit %q is not an integer", rec.ID, previous)
		}
		if rec.NewUnit, ok = new(big.Int).SetString(newUnitStr, 10); !ok {
			return nil, fmt.Errorf("adjustment %d new unit %q is not an integer", rec.ID, newUnitStr)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating adjustments: %w", err)
	}
	return records, nil
}

// MemoryRepository keeps records in process. Used when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(_ context.Context, records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.nextID++
		rec.ID = r.nextID
		r.records = append(r.records, rec)
	}
	return nil
}

// List returns the newest records first.
func (r *MemoryRepository) List(_ context.Context, basket common.Address, limit int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, rec := range r.records {
		if rec.Basket == basket {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
