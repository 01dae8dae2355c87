package presentation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/application"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/config"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/ingress"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/resolver"
)

const testSecret = "handler-test-secret"

// stubOrderRepo backs the handler tests with one in-memory order and counts
// lookups so the no-lookup-on-auth-failure property can be asserted.
type stubOrderRepo struct {
	order   *domain.Order
	lookups atomic.Int32
}

func (s *stubOrderRepo) AddOrder(_ context.Context, o *domain.Order) error {
	o.ID = 1
	s.order = o
	return nil
}

func (s *stubOrderRepo) FindByNormalizedReference(_ context.Context, norm string) (*domain.Order, error) {
	s.lookups.Add(1)
	if s.order != nil && resolver.Normalize(s.order.ReferenceID) == norm {
		cp := *s.order
		return &cp, nil
	}
	return nil, nil
}

func (s *stubOrderRepo) FindByReference(_ context.Context, ref string) (*domain.Order, error) {
	s.lookups.Add(1)
	if s.order != nil && s.order.ReferenceID == ref {
		cp := *s.order
		return &cp, nil
	}
	return nil, nil
}

func (s *stubOrderRepo) FindByTransactionID(_ context.Context, txnID string) (*domain.Order, error) {
	s.lookups.Add(1)
	if s.order != nil && txnID != "" && s.order.GatewayTransactionID == txnID {
		cp := *s.order
		return &cp, nil
	}
	return nil, nil
}

func (s *stubOrderRepo) ListItems(context.Context, int64) ([]domain.OrderItem, error) {
	return nil, nil
}

func (s *stubOrderRepo) MarkPaid(_ context.Context, orderID int64, txnID string) (bool, error) {
	if s.order == nil || s.order.ID != orderID {
		return false, nil
	}
	if s.order.PaymentStatus == domain.PaymentPaid {
		return false, nil
	}
	s.order.PaymentStatus = domain.PaymentPaid
	s.order.GatewayTransactionID = txnID
	return true, nil
}

func (s *stubOrderRepo) MarkFailed(_ context.Context, orderID int64, reason string) (bool, error) {
	if s.order != nil && s.order.ID == orderID && s.order.PaymentStatus != domain.PaymentPaid {
		s.order.PaymentStatus = domain.PaymentFailed
		s.order.FailureReason = reason
		return true, nil
	}
	return false, nil
}

func (s *stubOrderRepo) ConfirmOrder(_ context.Context, orderID int64) (bool, error) {
	if s.order != nil && s.order.ID == orderID &&
		s.order.PaymentStatus == domain.PaymentPaid && s.order.OrderStatus == domain.OrderPending {
		s.order.OrderStatus = domain.OrderConfirmed
		return true, nil
	}
	return false, nil
}

type nopReconciler struct{}

func (nopReconciler) Reconcile(context.Context, *domain.Order) []domain.ReconciliationFailure {
	return nil
}

func newTestServer(repo *stubOrderRepo) (*httptest.Server, *ingress.Ingress) {
	svc := application.NewPaymentsService(repo, nopReconciler{}, nil)
	ing := ingress.New(testSecret, config.EnvProduction)
	h := NewPaymentsHandler(svc, ing, nil)

	r := chi.NewRouter()
	h.Register(r)
	return httptest.NewServer(r), ing
}

func pendingRepo() *stubOrderRepo {
	return &stubOrderRepo{order: &domain.Order{
		ID:            1,
		ReferenceID:   "ABC-123",
		PickupID:      "20260314-092653-deadbeef",
		PaymentStatus: domain.PaymentPending,
		OrderStatus:   domain.OrderPending,
	}}
}

func postWebhook(t *testing.T, srv *httptest.Server, body []byte, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/payment", bytes.NewReader(body))
	require.NoError(t, err)
	if signature != "" {
		req.Header.Set(ingress.SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPaymentWebhook_ReceivedHappyPath(t *testing.T) {
	repo := pendingRepo()
	srv, ing := newTestServer(repo)
	defer srv.Close()

	body := []byte(`{"event":"payment.received","data":{"order_ref":"abc123","transaction_id":"txn-1","amount":1000,"currency":"EUR"}}`)
	resp := postWebhook(t, srv, body, ing.Sign(body))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	require.Equal(t, true, out["success"])
	require.Equal(t, "ABC-123", out["orderId"])
	require.Equal(t, "paid", out["paymentStatus"])
	require.Equal(t, "pending", out["orderStatus"])
	require.Equal(t, domain.PaymentPaid, repo.order.PaymentStatus)
}

func TestPaymentWebhook_BadSignatureSkipsLookup(t *testing.T) {
	repo := pendingRepo()
	srv, ing := newTestServer(repo)
	defer srv.Close()

	body := []byte(`{"event":"payment.received","data":{"order_ref":"abc123"}}`)
	sig := ing.Sign(body)
	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01

	resp := postWebhook(t, srv, tampered, sig)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
	require.Zero(t, repo.lookups.Load(), "no order lookup on auth failure")
}

func TestPaymentWebhook_UnknownOrderIs404(t *testing.T) {
	srv, ing := newTestServer(&stubOrderRepo{})
	defer srv.Close()

	body := []byte(`{"event":"payment.received","data":{"order_ref":"nothere"}}`)
	resp := postWebhook(t, srv, body, ing.Sign(body))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPaymentWebhook_UnhandledKindAcknowledged(t *testing.T) {
	repo := pendingRepo()
	srv, ing := newTestServer(repo)
	defer srv.Close()

	body := []byte(`{"event":"payment.refund_requested"}`)
	resp := postWebhook(t, srv, body, ing.Sign(body))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	require.Equal(t, true, out["success"])
	require.Equal(t, "unhandled event", out["message"])
	require.Zero(t, repo.lookups.Load())
}

func TestWebhookChallenge_EchoesChallenge(t *testing.T) {
	srv, _ := newTestServer(&stubOrderRepo{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/webhooks/payment?challenge=ping-1234")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	require.Equal(t, "ping-1234", buf.String())
}

func TestAdminConfirmPayment_UsesSamePipeline(t *testing.T) {
	repo := pendingRepo()
	srv, _ := newTestServer(repo)
	defer srv.Close()

	body := []byte(`{"order_reference":"abc123","transaction_id":"txn-7"}`)
	resp, err := http.Post(srv.URL+"/admin/payments/confirm", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	require.Equal(t, "paid", out["paymentStatus"])
	require.Equal(t, domain.PaymentPaid, repo.order.PaymentStatus)
}

func TestConfirmOrder_RequiresPaid(t *testing.T) {
	repo := pendingRepo()
	srv, _ := newTestServer(repo)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/orders/ABC-123/confirm", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	repo.order.PaymentStatus = domain.PaymentPaid
	resp, err = http.Post(srv.URL+"/admin/orders/ABC-123/confirm", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	require.Equal(t, "confirmed", out["orderStatus"])
}
