package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceEvent is published after an invoice status change has been committed.
type InvoiceEvent struct {
	InvoiceID          string          `json:"invoice_id"`
	ClientReference    string          `json:"client_reference"`
	Previous           InvoiceStatus   `json:"previous"`
	Status             InvoiceStatus   `json:"status"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	At                 time.Time       `json:"at"`
}
