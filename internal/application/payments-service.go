package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/identity"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/logger"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/repository"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/resolver"
)

// Reconciler applies a paid order's line items to stock. Failures are
// returned, not raised: the payment already happened.
type Reconciler interface {
	Reconcile(ctx context.Context, order *domain.Order) []domain.ReconciliationFailure
}

// Publisher hands a newly paid order to downstream consumers. Optional.
type Publisher interface {
	PublishOrderPaid(ctx context.Context, order *domain.Order) error
}

// PaymentsService is the one pipeline every payment notification goes
// through, whether it arrived on the gateway webhook or from the admin
// confirm-payment call.
type PaymentsService struct {
	orders     repository.OrderRepo
	resolver   *resolver.Resolver
	reconciler Reconciler
	publisher  Publisher
}

func NewPaymentsService(orders repository.OrderRepo, rec Reconciler, pub Publisher) *PaymentsService {
	return &PaymentsService{
		orders:     orders,
		resolver:   resolver.New(orders),
		reconciler: rec,
		publisher:  pub,
	}
}

// ProcessNotification resolves the event to an order and applies the payment
// outcome. For "received" events the not-paid -> paid transition and the
// stock reconciliation fire at most once per order no matter how often the
// gateway delivers the notification; duplicates are acknowledged as no-ops.
// Unhandled event kinds return (nil, nil).
func (s *PaymentsService) ProcessNotification(ctx context.Context, ev domain.NotificationEvent) (*domain.Order, error) {
	if ev.Kind == domain.EventUnhandled {
		return nil, nil
	}

	ord, err := s.resolver.Resolve(ctx, ev.OrderReference, ev.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: resolve %q: %v", domain.ErrTransient, ev.OrderReference, err)
	}

	switch ev.Kind {
	case domain.EventReceived:
		newlyPaid, err := s.orders.MarkPaid(ctx, ord.ID, ev.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("%w: mark paid order %d: %v", domain.ErrTransient, ord.ID, err)
		}
		ord.PaymentStatus = domain.PaymentPaid
		ord.FailureReason = ""
		if ev.TransactionID != "" {
			ord.GatewayTransactionID = ev.TransactionID
		}

		if !newlyPaid {
			logger.Info("duplicate payment notification", "order_id", ord.ID, "transaction_id", ev.TransactionID)
			break
		}

		logger.Info("order paid", "order_id", ord.ID, "reference", ord.ReferenceID, "transaction_id", ev.TransactionID)
		if failures := s.reconciler.Reconcile(ctx, ord); len(failures) > 0 {
			// divergence between money and stock; each item was already
			// logged with its product id, this is the order-level summary
			logger.Warn("reconciliation incomplete", "order_id", ord.ID, "failed_items", len(failures))
		}
		s.publishPaid(ctx, ord)

	case domain.EventFailed:
		applied, err := s.orders.MarkFailed(ctx, ord.ID, ev.FailureMessage)
		if err != nil {
			return nil, fmt.Errorf("%w: mark failed order %d: %v", domain.ErrTransient, ord.ID, err)
		}
		if applied {
			ord.PaymentStatus = domain.PaymentFailed
			ord.FailureReason = ev.FailureMessage
			logger.Info("payment failed", "order_id", ord.ID, "reason", ev.FailureMessage)
		} else {
			// the guard in the store refused the downgrade: the order got
			// paid after our read, report what is actually persisted
			ord.PaymentStatus = domain.PaymentPaid
			logger.Info("failed notification for paid order ignored", "order_id", ord.ID)
		}
	}

	return ord, nil
}

func (s *PaymentsService) publishPaid(ctx context.Context, ord *domain.Order) {
	if s.publisher == nil {
		return
	}
	// best effort; the gateway response never waits on downstream consumers
	if err := s.publisher.PublishOrderPaid(ctx, ord); err != nil {
		logger.Warn("publish order paid failed", "order_id", ord.ID, "err", err)
	}
}

// CreateOrder mints the dual identifiers and persists the order with its
// items. Called by the checkout flow before the gateway link is created.
func (s *PaymentsService) CreateOrder(ctx context.Context, ord *domain.Order) error {
	ref, pickup, err := identity.GenerateOrderIDs()
	if err != nil {
		return err
	}
	ord.ReferenceID = ref
	ord.PickupID = pickup
	ord.PaymentStatus = domain.PaymentPending
	ord.OrderStatus = domain.OrderPending
	return s.orders.AddOrder(ctx, ord)
}

// GetOrder returns an order with its items by exact reference id.
func (s *PaymentsService) GetOrder(ctx context.Context, referenceID string) (*domain.Order, error) {
	ord, err := s.orders.FindByReference(ctx, referenceID)
	if err != nil || ord == nil {
		return ord, err
	}
	items, err := s.orders.ListItems(ctx, ord.ID)
	if err != nil {
		return nil, err
	}
	ord.Items = items
	return ord, nil
}

var ErrNotConfirmable = errors.New("order is not awaiting confirmation or not paid")

// ConfirmOrder advances a paid order to confirmed. Admin action; payment
// events never touch order_status.
func (s *PaymentsService) ConfirmOrder(ctx context.Context, referenceID string) (*domain.Order, error) {
	ord, err := s.orders.FindByReference(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	if ord == nil {
		return nil, domain.ErrOrderNotFound
	}
	ok, err := s.orders.ConfirmOrder(ctx, ord.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	if !ok {
		return ord, ErrNotConfirmable
	}
	ord.OrderStatus = domain.OrderConfirmed
	return ord, nil
}
