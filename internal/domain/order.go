package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderCancelled      OrderStatus = "cancelled"
	OrderFailed         OrderStatus = "failed"
)

type Order struct {
	ID                   int64         `json:"id"`
	ReferenceID          string        `json:"reference_id"`
	PickupID             string        `json:"pickup_id"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	OrderStatus          OrderStatus   `json:"order_status"`
	GatewayTransactionID string        `json:"gateway_transaction_id,omitempty"`
	FailureReason        string        `json:"failure_reason,omitempty"`
	TotalAmount          int64         `json:"total_amount_cents"`
	Currency             string        `json:"currency"`
	DeliveryOption       string        `json:"delivery_option"`
	CustomerName         string        `json:"customer_name"`
	CustomerPhone        string        `json:"customer_phone"`
	CustomerEmail        string        `json:"customer_email"`
	Address              string        `json:"address"`
	City                 string        `json:"city"`
	Zip                  string        `json:"zip"`
	Items                []OrderItem   `json:"items,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	PaidAt               *time.Time    `json:"paid_at,omitempty"`
}

// OrderItem is owned by its order; rows go away with the order.
type OrderItem struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	// VariantAttributes selects an attribute stock pool (e.g. {"color":"red"}).
	// When empty the item decrements whole-product stock.
	VariantAttributes map[string]string `json:"variant_attributes,omitempty"`
	Quantity          int               `json:"quantity"`
	UnitPrice         int64             `json:"unit_price_cents"`
}
