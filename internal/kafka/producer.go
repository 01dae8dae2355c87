package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
)

type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokersSTR, topic string) *Producer {
	brokers := strings.Split(brokersSTR, ",")

	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (p *Producer) Close() error {
	return p.w.Close()
}

type orderPaidEvent struct {
	ReferenceID   string `json:"reference_id"`
	PickupID      string `json:"pickup_id"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	PaidAt        string `json:"paid_at"`
}

// PublishOrderPaid pushes a newly paid order for downstream consumers
// (receipts, analytics). The notification pipeline treats this as best
// effort and never blocks the gateway response on it.
func (p *Producer) PublishOrderPaid(ctx context.Context, o *domain.Order) error {
	ev := orderPaidEvent{
		ReferenceID:   o.ReferenceID,
		PickupID:      o.PickupID,
		TransactionID: o.GatewayTransactionID,
		AmountCents:   o.TotalAmount,
		Currency:      o.Currency,
		PaidAt:        time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ReferenceID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
}
