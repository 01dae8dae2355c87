package application

import (
	"context"
	"fmt"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/logger"
)

type ItemLister interface {
	ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
}

type StockStore interface {
	ListPools(ctx context.Context, productID int64) ([]domain.AttributePool, error)
	DecrementPool(ctx context.Context, poolID int64, qty int) error
	DecrementProduct(ctx context.Context, productID int64, qty int) error
}

// InventoryReconciler decrements stock for every line item of a paid order,
// at attribute-pool granularity when the item carries variant attributes,
// otherwise at whole-product granularity. Item failures are collected and
// logged; they never abort the remaining items and never touch payment state.
type InventoryReconciler struct {
	items ItemLister
	stock StockStore
}

func NewInventoryReconciler(items ItemLister, stock StockStore) *InventoryReconciler {
	return &InventoryReconciler{items: items, stock: stock}
}

func (r *InventoryReconciler) Reconcile(ctx context.Context, ord *domain.Order) []domain.ReconciliationFailure {
	items := ord.Items
	if len(items) == 0 {
		var err error
		items, err = r.items.ListItems(ctx, ord.ID)
		if err != nil {
			logger.Error("reconcile: load items failed", "order_id", ord.ID, "err", err)
			return []domain.ReconciliationFailure{{OrderID: ord.ID, Reason: "list items: " + err.Error()}}
		}
	}

	// items stay sequential inside one order: two of them may point at the
	// same pool
	var failures []domain.ReconciliationFailure
	for _, it := range items {
		if err := r.applyItem(ctx, it); err != nil {
			failures = append(failures, domain.ReconciliationFailure{
				OrderID:   ord.ID,
				ProductID: it.ProductID,
				Reason:    err.Error(),
			})
			logger.Error("stock decrement failed",
				"order_id", ord.ID, "product_id", it.ProductID, "err", err)
		}
	}
	return failures
}

func (r *InventoryReconciler) applyItem(ctx context.Context, it domain.OrderItem) error {
	if len(it.VariantAttributes) == 0 {
		return r.stock.DecrementProduct(ctx, it.ProductID, it.Quantity)
	}

	pools, err := r.stock.ListPools(ctx, it.ProductID)
	if err != nil {
		return fmt.Errorf("list pools: %w", err)
	}
	pool := matchPool(pools, it.VariantAttributes)
	if pool == nil {
		return fmt.Errorf("no attribute pool matches %v", it.VariantAttributes)
	}
	return r.stock.DecrementPool(ctx, pool.ID, it.Quantity)
}

// matchPool returns the pool whose name/value pair is matched by every key
// of attrs, or nil.
func matchPool(pools []domain.AttributePool, attrs map[string]string) *domain.AttributePool {
	for i := range pools {
		matched := len(attrs) > 0
		for name, value := range attrs {
			if pools[i].AttributeName != name || pools[i].AttributeValue != value {
				matched = false
				break
			}
		}
		if matched {
			return &pools[i]
		}
	}
	return nil
}
