package presentation

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/application"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/ingress"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/logger"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/presentation/helpers"
)

const maxWebhookBody = 1 << 20

type PaymentsHandler struct {
	svc     *application.PaymentsService
	ingress *ingress.Ingress
	limit   func(http.Handler) http.Handler
}

// NewPaymentsHandler wires the webhook ingress and the pipeline service.
// limit wraps the webhook POST route; pass nil for no rate limiting.
func NewPaymentsHandler(svc *application.PaymentsService, ing *ingress.Ingress, limit func(http.Handler) http.Handler) *PaymentsHandler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &PaymentsHandler{svc: svc, ingress: ing, limit: limit}
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/webhooks", func(r chi.Router) {
		r.With(h.limit).Post("/payment", h.PaymentWebhook)
		r.Get("/payment", h.WebhookChallenge)
	})

	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{reference}", h.GetOrder)

	r.Post("/admin/orders/{reference}/confirm", h.ConfirmOrder)
	r.Post("/admin/payments/confirm", h.ConfirmPayment)
}

func (h *PaymentsHandler) Health(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PaymentWebhook is the inbound gateway callback. Response codes are chosen
// for the gateway's retry logic: 401/400 are permanent, 404 and 500 invite
// a retry, unhandled event kinds are acknowledged so the gateway stops.
func (h *PaymentsHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := h.ingress.Ingest(body, r.Header)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuth):
			logger.Warn("webhook rejected", "err", err)
			helpers.HttpError(w, http.StatusUnauthorized, "invalid signature")
		case errors.Is(err, domain.ErrParse):
			helpers.HttpError(w, http.StatusBadRequest, "malformed payload")
		default:
			helpers.HttpError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.runPipeline(w, r, ev)
}

// WebhookChallenge answers the gateway's endpoint verification handshake.
func (h *PaymentsHandler) WebhookChallenge(w http.ResponseWriter, r *http.Request) {
	if challenge := r.URL.Query().Get("challenge"); challenge != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(challenge))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ConfirmPayment is the synchronous admin entry point. It feeds the same
// pipeline as the webhook instead of duplicating its logic.
func (h *PaymentsHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderReference string `json:"order_reference"`
		TransactionID  string `json:"transaction_id"`
		Amount         int64  `json:"amount"`
		Currency       string `json:"currency"`
	}
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.OrderReference) == "" {
		helpers.HttpError(w, http.StatusBadRequest, "order_reference is required")
		return
	}

	h.runPipeline(w, r, domain.NotificationEvent{
		Kind:           domain.EventReceived,
		OrderReference: req.OrderReference,
		TransactionID:  req.TransactionID,
		Amount:         req.Amount,
		Currency:       req.Currency,
	})
}

func (h *PaymentsHandler) runPipeline(w http.ResponseWriter, r *http.Request, ev domain.NotificationEvent) {
	ord, err := h.svc.ProcessNotification(r.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			helpers.HttpError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrTransient):
			logger.Error("notification processing failed", "err", err)
			helpers.HttpError(w, http.StatusInternalServerError, "temporary failure, retry")
		default:
			logger.Error("notification processing failed", "err", err)
			helpers.HttpError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if ord == nil {
		helpers.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "unhandled event",
		})
		return
	}

	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"orderId":       ord.ReferenceID,
		"paymentStatus": ord.PaymentStatus,
		"orderStatus":   ord.OrderStatus,
	})
}

type createOrderRequest struct {
	TotalAmount    int64            `json:"total_amount_cents"`
	Currency       string           `json:"currency"`
	DeliveryOption string           `json:"delivery_option"`
	CustomerName   string           `json:"customer_name"`
	CustomerPhone  string           `json:"customer_phone"`
	CustomerEmail  string           `json:"customer_email"`
	Address        string           `json:"address"`
	City           string           `json:"city"`
	Zip            string           `json:"zip"`
	Items          []orderItemInput `json:"items"`
}

type orderItemInput struct {
	ProductID         int64             `json:"product_id"`
	VariantAttributes map[string]string `json:"variant_attributes,omitempty"`
	Quantity          int               `json:"quantity"`
	UnitPrice         int64             `json:"unit_price_cents"`
}

func (h *PaymentsHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		helpers.HttpError(w, http.StatusBadRequest, "items are required")
		return
	}

	ord := &domain.Order{
		TotalAmount:    req.TotalAmount,
		Currency:       req.Currency,
		DeliveryOption: req.DeliveryOption,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
		Address:        req.Address,
		City:           req.City,
		Zip:            req.Zip,
	}
	for _, it := range req.Items {
		ord.Items = append(ord.Items, domain.OrderItem{
			ProductID:         it.ProductID,
			VariantAttributes: it.VariantAttributes,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice,
		})
	}

	if err := h.svc.CreateOrder(r.Context(), ord); err != nil {
		logger.Error("create order failed", "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"reference_id": ord.ReferenceID,
		"pickup_id":    ord.PickupID,
	})
}

func (h *PaymentsHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	if strings.TrimSpace(ref) == "" {
		helpers.HttpError(w, http.StatusBadRequest, "reference is empty")
		return
	}

	ord, err := h.svc.GetOrder(r.Context(), ref)
	if err != nil {
		logger.Error("get order failed", "reference", ref, "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	if ord == nil {
		helpers.HttpError(w, http.StatusNotFound, "order not found")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, ord)
}

func (h *PaymentsHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")

	ord, err := h.svc.ConfirmOrder(r.Context(), ref)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		helpers.HttpError(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, application.ErrNotConfirmable):
		helpers.HttpError(w, http.StatusConflict, "order is not paid or already confirmed")
		return
	case err != nil:
		logger.Error("confirm order failed", "reference", ref, "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "failed to confirm order")
		return
	}

	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"orderId":     ord.ReferenceID,
		"orderStatus": ord.OrderStatus,
	})
}
