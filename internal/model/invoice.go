package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the fixed scale every amount is normalised to.
const MoneyPlaces = 2

type InvoiceStatus string

const (
	InvoicePending       InvoiceStatus = "PENDING"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceReconciled    InvoiceStatus = "RECONCILED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePartiallyPaid, InvoicePaid, InvoiceReconciled:
		return true
	}
	return false
}

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	st := InvoiceStatus(s)
	if !st.Valid() {
		return "", NewValidationError("status", s, ErrInvalidStatus)
	}
	return st, nil
}

// Now is the clock used for issue, payment and reconciliation stamps.
// Timestamps are kept in UTC at microsecond precision so they survive a store round trip.
var Now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Money rounds d to cents.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseMoney parses a decimal string such as "1500.50". Fractions of a cent are rejected.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", s, fmt.Errorf("not a decimal: %w", err))
	}
	return exactMoney("amount", d)
}

// exactMoney returns d in cents, or a ValidationError if rounding would change it.
func exactMoney(field string, d decimal.Decimal) (decimal.Decimal, error) {
	if !d.Equal(d.Truncate(MoneyPlaces)) {
		return decimal.Zero, NewValidationError(field, d, ErrSubCentAmount)
	}
	return Money(d), nil
}

// Invoice is the monetary document produced for one completed order.
// OutstandingBalance only ever decreases, through ApplyPayment.
type Invoice struct {
	ID                 string          `json:"id"`
	OrderReference     string          `json:"order_reference"`
	ClientReference    string          `json:"client_reference"`
	Total              decimal.Decimal `json:"total"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	Status             InvoiceStatus   `json:"status"` // PENDING, PARTIALLY_PAID, PAID, RECONCILED
	IssueDate          time.Time       `json:"issue_date"`
	PaymentDate        *time.Time      `json:"payment_date,omitempty"`
	ProofReference     string          `json:"proof_reference,omitempty"`
}

func NewInvoice(id, orderReference string, total decimal.Decimal, clientReference string) (*Invoice, error) {
	if id == "" {
		return nil, NewValidationError("id", id, ErrRequired)
	}
	if clientReference == "" {
		return nil, NewValidationError("client_reference", clientReference, ErrRequired)
	}
	total, err := exactMoney("total", total)
	if err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, NewValidationError("total", total, ErrNonPositiveAmount)
	}

	return &Invoice{
		ID:                 id,
		OrderReference:     orderReference,
		ClientReference:    clientReference,
		Total:              total,
		OutstandingBalance: total,
		Status:             InvoicePending,
		IssueDate:          day(Now()),
	}, nil
}

// ApplyPayment deducts amount from the outstanding balance. On error the invoice is left untouched.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal, proofReference string) error {
	amount, err := exactMoney("amount", amount)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return NewValidationError("amount", amount, ErrNonPositiveAmount)
	}
	if inv.Status == InvoiceReconciled {
		return NewValidationError("status", inv.Status, ErrInvoiceClosed)
	}
	if amount.GreaterThan(inv.OutstandingBalance) {
		return NewValidationError("amount", amount, ErrOverpayment)
	}

	inv.OutstandingBalance = inv.OutstandingBalance.Sub(amount)
	inv.ProofReference = proofReference
	if inv.OutstandingBalance.IsZero() {
		inv.Status = InvoicePaid
	} else {
		inv.Status = InvoicePartiallyPaid
	}
	paid := day(Now())
	inv.PaymentDate = &paid

	return nil
}

// Paid is the amount settled so far.
func (inv *Invoice) Paid() decimal.Decimal {
	return inv.Total.Sub(inv.OutstandingBalance)
}

// PromoteReconciled moves a PAID invoice to RECONCILED when every transaction
// referencing it is reconciled and together they cover the paid amount.
func (inv *Invoice) PromoteReconciled(txs []Transaction) bool {
	if inv.Status != InvoicePaid || len(txs) == 0 {
		return false
	}

	sum := decimal.Zero
	for _, tx := range txs {
		if tx.InvoiceReference != inv.ID || !tx.Reconciled {
			return false
		}
		sum = sum.Add(tx.Amount)
	}
	if !sum.Equal(inv.Paid()) {
		return false
	}

	inv.Status = InvoiceReconciled
	return true
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
