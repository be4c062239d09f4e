package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciler/internal/database"
	"reconciler/internal/model"
	"reconciler/internal/retry"
	"reconciler/internal/service"
	"reconciler/internal/storage"
)

const (
	testJWTSecret    = "jwt-secret"
	testStripeSecret = "whsec_test"
)

type testServer struct {
	t     *testing.T
	h     http.Handler
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "api.db") + "?_journal_mode=WAL&_busy_timeout=5000&_fk=1"
	ctx := context.Background()
	db, err := database.NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB(db) })
	require.NoError(t, database.InitSchema(ctx, db))

	gw := storage.NewGateway(db.DB, retry.New(nil))
	h := NewRouter(
		RouterConfig{JWTSecret: testJWTSecret, StripeWebhookSecret: testStripeSecret},
		service.NewReconciliationService(gw, nil),
		service.NewAuthService(gw, testJWTSecret),
	)

	s := &testServer{t: t, h: h}
	rec := s.do(http.MethodPost, "/api/operator/register", `{"login":"clerk","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	s.token = tok.Token
	return s
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestInvoiceLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/invoices", `{"id":"INV-001","order_reference":"ORD-001","client_reference":"CLI-001","total":"1500.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[model.Invoice](t, rec)
	assert.Equal(t, model.InvoicePending, inv.Status)

	rec = s.do(http.MethodPost, "/api/invoices/INV-001/payments", `{"transaction_id":"TRX-001","amount":"1500.50","method":"TRANSFER","bank_reference":"REF-001","proof_reference":"PROOF-001"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paid := decode[service.PaymentResult](t, rec)
	assert.Equal(t, model.InvoicePaid, paid.Invoice.Status)
	assert.Equal(t, "TRX-001", paid.Transaction.ID)

	rec = s.do(http.MethodPost, "/api/transactions/TRX-001/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.ReconcileResult](t, rec)
	assert.True(t, res.Promoted)
	assert.Equal(t, model.InvoiceReconciled, res.Invoice.Status)

	rec = s.do(http.MethodGet, "/api/invoices/INV-001/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decode[service.Balance](t, rec)
	assert.True(t, bal.Outstanding.IsZero())
	assert.True(t, decimal.RequireFromString("1500.50").Equal(bal.Paid))

	rec = s.do(http.MethodGet, "/api/invoices/INV-001/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Transaction](t, rec), 1)

	rec = s.do(http.MethodGet, "/api/invoices/INV-001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.InvoiceReconciled, decode[model.Invoice](t, rec).Status)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/invoices", `{"id":"INV-002","order_reference":"ORD-002","client_reference":"CLI-002","total":100}`).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"duplicate invoice", http.MethodPost, "/api/invoices", `{"id":"INV-002","order_reference":"ORD-X","client_reference":"CLI-002","total":100}`, http.StatusConflict},
		{"non-positive total", http.MethodPost, "/api/invoices", `{"id":"INV-003","order_reference":"ORD-003","client_reference":"CLI-003","total":0}`, http.StatusUnprocessableEntity},
		{"bad json", http.MethodPost, "/api/invoices", `{`, http.StatusBadRequest},
		{"unknown invoice", http.MethodGet, "/api/invoices/INV-404", "", http.StatusNotFound},
		{"payment on unknown invoice", http.MethodPost, "/api/invoices/INV-404/payments", `{"amount":1,"method":"CASH"}`, http.StatusNotFound},
		{"overpayment", http.MethodPost, "/api/invoices/INV-002/payments", `{"amount":"100.01","method":"CASH"}`, http.StatusUnprocessableEntity},
		{"fraction of a cent", http.MethodPost, "/api/invoices/INV-002/payments", `{"amount":"99.999","method":"CASH"}`, http.StatusUnprocessableEntity},
		{"unknown method", http.MethodPost, "/api/invoices/INV-002/payments", `{"amount":"1","method":"BARTER"}`, http.StatusUnprocessableEntity},
		{"unknown transaction", http.MethodPost, "/api/transactions/TRX-404/reconcile", "", http.StatusNotFound},
		{"no transactions yet", http.MethodGet, "/api/invoices/INV-002/transactions", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	rec := s.do(http.MethodGet, "/api/invoices/INV-001", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	rec := s.do(http.MethodPost, "/api/operator/login", `{"login":"clerk","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Authorization"))

	rec = s.do(http.MethodPost, "/api/operator/login", `{"login":"clerk","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/operator/register", `{"login":"clerk","password":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func stripeSignature(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func (s *testServer) webhook(payload []byte, signature string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func paymentIntentEvent(eventID, piID, invoiceID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":"payment_intent.succeeded","data":{"object":{"id":%q,"object":"payment_intent","amount":%d,"amount_received":%d,"currency":"usd","status":"succeeded","metadata":{"invoice_id":%q}}}}`,
		eventID, piID, amount, amount, invoiceID))
}

func TestStripeWebhook(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/invoices", `{"id":"INV-010","order_reference":"ORD-010","client_reference":"CLI-010","total":"250.00"}`).Code)

	payload := paymentIntentEvent("evt_1", "pi_1", "INV-010", 10050)

	rec := s.webhook(payload, stripeSignature(payload, "wrong-secret", time.Now()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.webhook(payload, stripeSignature(payload, testStripeSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// redelivery is acknowledged and not applied twice
	rec = s.webhook(payload, stripeSignature(payload, testStripeSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code)

	bal := decode[service.Balance](t, s.do(http.MethodGet, "/api/invoices/INV-010/balance", ""))
	assert.True(t, decimal.RequireFromString("149.50").Equal(bal.Outstanding), bal.Outstanding.String())
	assert.Equal(t, model.InvoicePartiallyPaid, bal.Status)

	txs := decode[[]model.Transaction](t, s.do(http.MethodGet, "/api/invoices/INV-010/transactions", ""))
	require.Len(t, txs, 1)
	assert.Equal(t, "pi_1", txs[0].ID)
	assert.Equal(t, model.MethodCard, txs[0].PaymentMethod)

	other := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{}}}`)
	rec = s.webhook(other, stripeSignature(other, testStripeSecret, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"overpayment", model.NewValidationError("amount", 1, model.ErrOverpayment), http.StatusUnprocessableEntity},
		{"duplicate", fmt.Errorf("wrap: %w", model.NewValidationError("id", "x", model.ErrDuplicateID)), http.StatusConflict},
		{"unknown", model.NewValidationError("invoice_id", "x", model.ErrUnknownReference), http.StatusNotFound},
		{"exhausted", &storage.StorageError{Op: "save", Entity: "invoice", Err: &retry.ExhaustedError{Attempts: 3, Last: errors.New("database is locked")}}, http.StatusServiceUnavailable},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
