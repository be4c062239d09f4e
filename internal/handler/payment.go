package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"reconciler/internal/model"
	"reconciler/internal/service"
)

type paymentRequest struct {
	TransactionID  string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	BankReference  string          `json:"bank_reference"`
	ProofReference string          `json:"proof_reference"`
}

func RecordPaymentHandler(svc *service.ReconciliationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.RecordPayment(r.Context(), service.PaymentInput{
			InvoiceID:      chi.URLParam(r, "id"),
			TransactionID:  req.TransactionID,
			Amount:         req.Amount,
			Method:         model.PaymentMethod(req.Method),
			BankReference:  req.BankReference,
			ProofReference: req.ProofReference,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, res)
	}
}

func ReconcileTransactionHandler(svc *service.ReconciliationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.ReconcileTransaction(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
