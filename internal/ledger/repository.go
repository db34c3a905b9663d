package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colorapp/merchstock/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the engine.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, itemID, warehouseID int64) (Balance, error)
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	SumMovements(ctx context.Context, itemID, warehouseID int64) (float64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// ErrBalanceNotFound indicates a missing balance row.
var ErrBalanceNotFound = errors.New("ledger: balance not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetBalance reads the cached balance outside a write transaction.
func (r *Repository) GetBalance(ctx context.Context, itemID, warehouseID int64) (Balance, error) {
	var bal Balance
	err := r.pool.QueryRow(ctx, `SELECT item_id, warehouse_id, qty, updated_at FROM stock_balances WHERE item_id=$1 AND warehouse_id=$2`, itemID, warehouseID).
		Scan(&bal.ItemID, &bal.WarehouseID, &bal.Qty, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{ItemID: itemID, WarehouseID: warehouseID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

// ListMovements lists ledger rows ordered by posting time, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, warehouse_id, qty, balance_after, tx_type, reference_id, is_cancellation, posted_at
FROM stock_movements
WHERE item_id=$1 AND warehouse_id=$2 AND posted_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY posted_at DESC, id DESC
LIMIT $5`, filter.ItemID, filter.WarehouseID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.WarehouseID, &m.Qty, &m.BalanceAfter, &m.Type, &m.ReferenceID, &m.IsCancellation, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListMovementsByReference returns every row written for one transaction.
func (r *Repository) ListMovementsByReference(ctx context.Context, reference string) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, warehouse_id, qty, balance_after, tx_type, reference_id, is_cancellation, posted_at
FROM stock_movements WHERE reference_id=$1 ORDER BY id ASC`, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.WarehouseID, &m.Qty, &m.BalanceAfter, &m.Type, &m.ReferenceID, &m.IsCancellation, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListBalanceKeys returns every (item, warehouse) pair present in the ledger.
func (r *Repository) ListBalanceKeys(ctx context.Context) ([]BalanceKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_id, warehouse_id FROM stock_movements`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := []BalanceKey{}
	for rows.Next() {
		var key BalanceKey
		if err := rows.Scan(&key.ItemID, &key.WarehouseID); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, itemID, warehouseID int64) (Balance, error) {
	var bal Balance
	err := r.tx.QueryRow(ctx, `SELECT item_id, warehouse_id, qty, updated_at FROM stock_balances WHERE item_id=$1 AND warehouse_id=$2 FOR UPDATE`, itemID, warehouseID).
		Scan(&bal.ItemID, &bal.WarehouseID, &bal.Qty, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{ItemID: itemID, WarehouseID: warehouseID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (item_id, warehouse_id, qty, balance_after, tx_type, reference_id, is_cancellation, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		m.ItemID, m.WarehouseID, m.Qty, m.BalanceAfter, string(m.Type), m.ReferenceID, m.IsCancellation, m.PostedAt).Scan(&id)
	return id, err
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (item_id, warehouse_id, qty, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (item_id, warehouse_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`,
		balance.ItemID, balance.WarehouseID, balance.Qty)
	return err
}

func (r *txRepository) SumMovements(ctx context.Context, itemID, warehouseID int64) (float64, error) {
	var sum float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM stock_movements WHERE item_id=$1 AND warehouse_id=$2`, itemID, warehouseID).Scan(&sum)
	return sum, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
