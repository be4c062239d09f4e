package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodCard     PaymentMethod = "CARD"
	MethodCash     PaymentMethod = "CASH"
	MethodCheck    PaymentMethod = "CHECK"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	switch m {
	case MethodTransfer, MethodCard, MethodCash, MethodCheck:
		return m, nil
	}
	return "", NewValidationError("payment_method", s, ErrInvalidMethod)
}

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "PENDING"
	TransactionReconciled TransactionStatus = "RECONCILED"
)

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case TransactionPending, TransactionReconciled:
		return st, nil
	}
	return "", NewValidationError("status", s, ErrInvalidStatus)
}

// Transaction records one payment instrument applied against an invoice.
// The only mutation after creation is Reconcile.
type Transaction struct {
	ID               string            `json:"id"`
	InvoiceReference string            `json:"invoice_reference"`
	Amount           decimal.Decimal   `json:"amount"`
	PaymentMethod    PaymentMethod     `json:"payment_method"`
	BankReference    string            `json:"bank_reference,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Status           TransactionStatus `json:"status"`
	Reconciled       bool              `json:"reconciled"`
	ReconciledAt     *time.Time        `json:"reconciled_at,omitempty"`
}

func NewTransaction(id, invoiceReference string, amount decimal.Decimal, method PaymentMethod, bankReference string) (*Transaction, error) {
	if id == "" {
		return nil, NewValidationError("id", id, ErrRequired)
	}
	if invoiceReference == "" {
		return nil, NewValidationError("invoice_reference", invoiceReference, ErrUnknownReference)
	}
	amount, err := exactMoney("amount", amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, NewValidationError("amount", amount, ErrNonPositiveAmount)
	}
	if _, err := ParsePaymentMethod(string(method)); err != nil {
		return nil, err
	}

	return &Transaction{
		ID:               id,
		InvoiceReference: invoiceReference,
		Amount:           amount,
		PaymentMethod:    method,
		BankReference:    bankReference,
		CreatedAt:        Now(),
		Status:           TransactionPending,
	}, nil
}

// Reconcile marks the transaction as confirmed against settlement.
// It reports false, and keeps the first ReconciledAt, when already reconciled.
func (t *Transaction) Reconcile() bool {
	if t.Reconciled {
		return false
	}
	at := Now()
	t.Reconciled = true
	t.ReconciledAt = &at
	t.Status = TransactionReconciled
	return true
}
