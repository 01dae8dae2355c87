package ingress

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/config"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/logger"
)

const SignatureHeader = "X-Webhook-Signature"

// Ingress authenticates raw gateway callbacks and normalizes the payload
// shapes the gateway has used over time into one canonical event.
type Ingress struct {
	secret []byte
	env    string
}

func New(secret, env string) *Ingress {
	return &Ingress{secret: []byte(secret), env: env}
}

// Ingest verifies the body signature and parses it. Returns domain.ErrAuth
// on a missing or wrong signature and domain.ErrParse on a body that is not
// JSON. An unknown event kind is NOT an error: the gateway cannot fix its own
// shape by retrying, so it comes back as an EventUnhandled event.
func (i *Ingress) Ingest(rawBody []byte, header http.Header) (domain.NotificationEvent, error) {
	if err := i.verify(rawBody, header.Get(SignatureHeader)); err != nil {
		return domain.NotificationEvent{}, err
	}
	return normalize(rawBody)
}

func (i *Ingress) verify(rawBody []byte, signature string) error {
	if signature == "" {
		// Only the development build of the environment may accept unsigned
		// callbacks; production is compared against the constant so no config
		// value can relax this.
		if i.env == config.EnvDevelopment {
			logger.Warn("webhook accepted without signature (development)")
			return nil
		}
		return fmt.Errorf("missing %s header: %w", SignatureHeader, domain.ErrAuth)
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("signature is not hex: %w", domain.ErrAuth)
	}

	mac := hmac.New(sha256.New, i.secret)
	mac.Write(rawBody)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return fmt.Errorf("signature mismatch: %w", domain.ErrAuth)
	}
	return nil
}

// Sign computes the signature the gateway is expected to send for body.
// Used by the admin confirm path and by tests.
func (i *Ingress) Sign(body []byte) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// The gateway changed its payload layout between the "received" and "failed"
// generations: same facts, different field names and nesting.
type receivedPayload struct {
	Data struct {
		OrderRef      string `json:"order_ref"`
		TransactionID string `json:"transaction_id"`
		Amount        int64  `json:"amount"`
		Currency      string `json:"currency"`
		Timestamp     int64  `json:"timestamp"`
	} `json:"data"`
}

type failedPayload struct {
	Payment struct {
		Reference     string `json:"reference"`
		TxnID         string `json:"txn_id"`
		FailureReason string `json:"failure_reason"`
	} `json:"payment"`
}

func normalize(rawBody []byte) (domain.NotificationEvent, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return domain.NotificationEvent{}, fmt.Errorf("decode envelope: %w", domain.ErrParse)
	}

	switch envelope.Event {
	case "payment.received":
		var p receivedPayload
		if err := json.Unmarshal(rawBody, &p); err != nil {
			return domain.NotificationEvent{}, fmt.Errorf("decode received payload: %w", domain.ErrParse)
		}
		ev := domain.NotificationEvent{
			Kind:           domain.EventReceived,
			RawKind:        envelope.Event,
			OrderReference: p.Data.OrderRef,
			TransactionID:  p.Data.TransactionID,
			Amount:         p.Data.Amount,
			Currency:       p.Data.Currency,
		}
		if p.Data.Timestamp > 0 {
			ev.Timestamp = time.Unix(p.Data.Timestamp, 0).UTC()
		}
		return ev, nil

	case "payment.failed":
		var p failedPayload
		if err := json.Unmarshal(rawBody, &p); err != nil {
			return domain.NotificationEvent{}, fmt.Errorf("decode failed payload: %w", domain.ErrParse)
		}
		return domain.NotificationEvent{
			Kind:           domain.EventFailed,
			RawKind:        envelope.Event,
			OrderReference: p.Payment.Reference,
			TransactionID:  p.Payment.TxnID,
			FailureMessage: p.Payment.FailureReason,
		}, nil

	default:
		logger.Info("unhandled webhook event kind", "kind", envelope.Event)
		return domain.NotificationEvent{
			Kind:    domain.EventUnhandled,
			RawKind: envelope.Event,
		}, nil
	}
}
