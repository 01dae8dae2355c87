package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/logger"
)

type OrderRepo interface {
	AddOrder(ctx context.Context, order *domain.Order) error
	FindByNormalizedReference(ctx context.Context, norm string) (*domain.Order, error)
	FindByReference(ctx context.Context, ref string) (*domain.Order, error)
	FindByTransactionID(ctx context.Context, txnID string) (*domain.Order, error)
	ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	MarkPaid(ctx context.Context, orderID int64, txnID string) (bool, error)
	MarkFailed(ctx context.Context, orderID int64, reason string) (bool, error)
	ConfirmOrder(ctx context.Context, orderID int64) (bool, error)
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(p *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: p}
}

const orderColumns = `id, reference_id, pickup_id, payment_status, order_status,
	gateway_transaction_id, failure_reason, total_amount_cents, currency,
	delivery_option, customer_name, customer_phone, customer_email,
	address, city, zip, created_at, paid_at`

func (p *OrderRepository) AddOrder(ctx context.Context, o *domain.Order) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = tx.QueryRow(ctx,
		`INSERT INTO orders
			(reference_id, pickup_id, payment_status, order_status,
			 total_amount_cents, currency, delivery_option,
			 customer_name, customer_phone, customer_email, address, city, zip)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at
		`,
		o.ReferenceID,
		o.PickupID,
		o.PaymentStatus,
		o.OrderStatus,
		o.TotalAmount,
		o.Currency,
		o.DeliveryOption,
		o.CustomerName,
		o.CustomerPhone,
		o.CustomerEmail,
		o.Address,
		o.City,
		o.Zip,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		logger.Warn("insert order failed", "reference", o.ReferenceID, "err", err)
		return err
	}

	// items are many to one; batch keeps it to one round trip
	if len(o.Items) > 0 {
		batch := &pgx.Batch{}
		for i := range o.Items {
			attrs, err := json.Marshal(o.Items[i].VariantAttributes)
			if err != nil {
				return fmt.Errorf("marshal variant attributes: %w", err)
			}
			batch.Queue(`
				INSERT INTO order_items (order_id, product_id, variant_attributes, quantity, unit_price_cents)
				VALUES ($1, $2, $3, $4, $5)
			`,
				o.ID,
				o.Items[i].ProductID,
				attrs,
				o.Items[i].Quantity,
				o.Items[i].UnitPrice,
			)
			o.Items[i].OrderID = o.ID
		}
		br := tx.SendBatch(ctx, batch)
		if err = br.Close(); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	tx = nil
	return nil
}

func (p *OrderRepository) FindByNormalizedReference(ctx context.Context, norm string) (*domain.Order, error) {
	// matches the expression index created in the migration
	return p.findOne(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE lower(regexp_replace(reference_id, '[^a-zA-Z0-9]+', '', 'g')) = $1`,
		norm)
}

func (p *OrderRepository) FindByReference(ctx context.Context, ref string) (*domain.Order, error) {
	return p.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE reference_id = $1`, ref)
}

func (p *OrderRepository) FindByTransactionID(ctx context.Context, txnID string) (*domain.Order, error) {
	return p.findOne(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE gateway_transaction_id = $1 AND gateway_transaction_id <> ''
		 ORDER BY id DESC LIMIT 1`,
		txnID)
}

func (p *OrderRepository) findOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var o domain.Order
	err := p.pool.QueryRow(ctx, query, arg).Scan(
		&o.ID,
		&o.ReferenceID,
		&o.PickupID,
		&o.PaymentStatus,
		&o.OrderStatus,
		&o.GatewayTransactionID,
		&o.FailureReason,
		&o.TotalAmount,
		&o.Currency,
		&o.DeliveryOption,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.CustomerEmail,
		&o.Address,
		&o.City,
		&o.Zip,
		&o.CreatedAt,
		&o.PaidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *OrderRepository) ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, order_id, product_id, variant_attributes, quantity, unit_price_cents
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var attrs []byte
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &attrs, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &it.VariantAttributes); err != nil {
				return nil, fmt.Errorf("unmarshal variant attributes for item %d: %w", it.ID, err)
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkPaid is the whole payment state machine for "received" events: one
// conditional UPDATE so concurrent duplicate deliveries serialize in the
// database and exactly one caller sees newlyPaid = true.
func (p *OrderRepository) MarkPaid(ctx context.Context, orderID int64, txnID string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE orders
		 SET payment_status = $2, gateway_transaction_id = $3, failure_reason = '', paid_at = now()
		 WHERE id = $1 AND payment_status <> $2`,
		orderID, domain.PaymentPaid, txnID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// already paid; keep the latest transaction id for future resolution
		_, err := p.pool.Exec(ctx,
			`UPDATE orders SET gateway_transaction_id = $2 WHERE id = $1 AND $2 <> ''`,
			orderID, txnID)
		return false, err
	}
	return true, nil
}

// MarkFailed records the failure unless the order is already paid; a late
// "failed" delivery never downgrades a success. The bool reports whether the
// row changed so callers can echo the authoritative status.
func (p *OrderRepository) MarkFailed(ctx context.Context, orderID int64, reason string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2, failure_reason = $3
		 WHERE id = $1 AND payment_status <> $4`,
		orderID, domain.PaymentFailed, reason, domain.PaymentPaid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ConfirmOrder advances order_status pending -> confirmed. Only paid orders
// are eligible; this is the manual checkpoint before fulfillment.
func (p *OrderRepository) ConfirmOrder(ctx context.Context, orderID int64) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE orders SET order_status = $2
		 WHERE id = $1 AND order_status = $3 AND payment_status = $4`,
		orderID, domain.OrderConfirmed, domain.OrderPending, domain.PaymentPaid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
