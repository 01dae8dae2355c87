package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
)

type StockRepository struct {
	pool *pgxpool.Pool
}

func NewStockRepository(p *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: p}
}

func (s *StockRepository) ListPools(ctx context.Context, productID int64) ([]domain.AttributePool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, attribute_name, attribute_value, quantity
		 FROM product_attribute_stock WHERE product_id = $1 ORDER BY id`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []domain.AttributePool
	for rows.Next() {
		var ap domain.AttributePool
		if err := rows.Scan(&ap.ID, &ap.ProductID, &ap.AttributeName, &ap.AttributeValue, &ap.Quantity); err != nil {
			return nil, err
		}
		pools = append(pools, ap)
	}
	return pools, rows.Err()
}

// DecrementPool subtracts qty from one attribute pool, floored at zero, and
// rebuilds the product aggregate from the pools in the same transaction.
// The decrement is a single conditional statement, not read-modify-write, so
// items of concurrent orders hitting the same pool cannot race past zero.
func (s *StockRepository) DecrementPool(ctx context.Context, poolID int64, qty int) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var productID int64
	err = tx.QueryRow(ctx,
		`SELECT product_id FROM product_attribute_stock WHERE id = $1`,
		poolID).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("attribute pool %d no longer exists", poolID)
		}
		return err
	}

	// Serialize sibling-pool decrements on the products row before touching
	// the pool. Under READ COMMITTED the recompute below sums from its own
	// statement snapshot; without this lock two transactions decrementing
	// different pools of the same product each miss the other's change and
	// the later commit writes a stale total. Waiting on the row lock first
	// means the recompute snapshots after the other side committed.
	var locked int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM products WHERE id = $1 FOR UPDATE`,
		productID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %d no longer exists", productID)
		}
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE product_attribute_stock
		 SET quantity = GREATEST(quantity - $2, 0)
		 WHERE id = $1`,
		poolID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attribute pool %d no longer exists", poolID)
	}

	// aggregate stays the sum of the pools
	_, err = tx.Exec(ctx,
		`UPDATE products p
		 SET stock_quantity = s.total, in_stock = s.total > 0
		 FROM (SELECT COALESCE(SUM(quantity), 0) AS total
		       FROM product_attribute_stock WHERE product_id = $1) s
		 WHERE p.id = $1`,
		productID)
	if err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	tx = nil
	return nil
}

// DecrementProduct subtracts qty from the whole-product counter, floored at
// zero, in one statement.
func (s *StockRepository) DecrementProduct(ctx context.Context, productID int64, qty int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products
		 SET stock_quantity = GREATEST(stock_quantity - $2, 0),
		     in_stock = GREATEST(stock_quantity - $2, 0) > 0
		 WHERE id = $1`,
		productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d no longer exists", productID)
	}
	return nil
}
