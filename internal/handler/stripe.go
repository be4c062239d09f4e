package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"reconciler/internal/model"
	"reconciler/internal/service"
)

const (
	maxWebhookBody         = int64(65536)
	paymentIntentSucceeded = "payment_intent.succeeded"
	invoiceMetadataKey     = "invoice_id"
)

// StripeWebhookHandler records succeeded card payments. The PaymentIntent id is
// used as the transaction id, so redelivered events are acknowledged without
// touching the invoice again.
type StripeWebhookHandler struct {
	svc            *service.ReconciliationService
	endpointSecret string
}

func NewStripeWebhookHandler(svc *service.ReconciliationService, endpointSecret string) *StripeWebhookHandler {
	return &StripeWebhookHandler{svc: svc, endpointSecret: endpointSecret}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		httpLog().Warn().Err(err).Msg("read webhook payload")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		httpLog().Warn().Err(err).Msg("webhook signature verification failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if event.Type != paymentIntentSucceeded {
		httpLog().Debug().Str("type", string(event.Type)).Msg("unhandled stripe event")
		w.WriteHeader(http.StatusOK)
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		httpLog().Warn().Err(err).Str("event", event.ID).Msg("parse payment intent")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	invoiceID := pi.Metadata[invoiceMetadataKey]
	if invoiceID == "" {
		httpLog().Warn().Str("payment_intent", pi.ID).Msg("payment intent without invoice_id metadata")
		w.WriteHeader(http.StatusOK)
		return
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}

	_, err = h.svc.RecordPayment(r.Context(), service.PaymentInput{
		InvoiceID:      invoiceID,
		TransactionID:  pi.ID,
		Amount:         decimal.New(amount, -model.MoneyPlaces),
		Method:         model.MethodCard,
		BankReference:  pi.ID,
		ProofReference: event.ID,
	})
	if errors.Is(err, model.ErrDuplicateID) {
		httpLog().Info().Str("payment_intent", pi.ID).Msg("payment intent already recorded")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpLog().Info().Str("payment_intent", pi.ID).Str("invoice_id", invoiceID).Msg("card payment recorded")
	w.WriteHeader(http.StatusOK)
}
