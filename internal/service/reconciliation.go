package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"reconciler/internal/logger"
	"reconciler/internal/model"
	"reconciler/internal/storage"
)

// Store is the persistence the coordinator needs; *storage.Gateway implements it.
type Store interface {
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	SaveInvoice(ctx context.Context, inv *model.Invoice) error
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	RecordPayment(ctx context.Context, inv *model.Invoice, tx *model.Transaction) error
	SaveTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, invoiceID string) ([]model.Transaction, error)
	ListAwaitingSettlement(ctx context.Context, limit int) ([]model.Transaction, error)
}

type Notifier interface {
	InvoiceStatusChanged(ctx context.Context, ev model.InvoiceEvent) error
}

// ReconciliationService runs the invoice → payment → transaction → reconciliation
// sequences. Each step is persisted before the next one starts; a failure stops the
// sequence and leaves earlier committed steps in place. A payment and its
// transaction are one step.
type ReconciliationService struct {
	store    Store
	notifier Notifier
	locks    *keyedMutex
	newID    func() string
	log      zerolog.Logger
}

func NewReconciliationService(store Store, notifier Notifier) *ReconciliationService {
	return &ReconciliationService{
		store:    store,
		notifier: notifier,
		locks:    newKeyedMutex(),
		newID:    uuid.NewString,
		log:      logger.WithComponent("reconciliation"),
	}
}

type CreateInvoiceInput struct {
	ID              string          `json:"id"`
	OrderReference  string          `json:"order_reference"`
	ClientReference string          `json:"client_reference"`
	Total           decimal.Decimal `json:"total"`
}

func (s *ReconciliationService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*model.Invoice, error) {
	inv, err := model.NewInvoice(in.ID, in.OrderReference, in.Total, in.ClientReference)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, model.NewValidationError("id", in.ID, model.ErrDuplicateID)
		}
		return nil, fmt.Errorf("create invoice %s: %w", in.ID, err)
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("order", inv.OrderReference).
		Str("total", inv.Total.StringFixed(model.MoneyPlaces)).
		Msg("invoice created")

	return inv, nil
}

type PaymentInput struct {
	InvoiceID string `json:"invoice_id"`
	// TransactionID is generated when empty. Supplying one makes redelivery of the same payment detectable.
	TransactionID  string              `json:"transaction_id,omitempty"`
	Amount         decimal.Decimal     `json:"amount"`
	Method         model.PaymentMethod `json:"method"`
	BankReference  string              `json:"bank_reference,omitempty"`
	ProofReference string              `json:"proof_reference,omitempty"`
}

type PaymentResult struct {
	Invoice     *model.Invoice     `json:"invoice"`
	Transaction *model.Transaction `json:"transaction"`
}

// RecordPayment applies one payment to an invoice and records the matching transaction.
// The balance is reduced once in memory and committed together with the transaction,
// so a failed write can be redelivered without deducting twice.
func (s *ReconciliationService) RecordPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	unlock := s.locks.Lock(in.InvoiceID)
	defer unlock()

	inv, err := s.loadInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}

	id := in.TransactionID
	if id == "" {
		id = s.newID()
	} else if err := s.ensureNewTransaction(ctx, id); err != nil {
		return nil, err
	}

	tx, err := model.NewTransaction(id, inv.ID, in.Amount, in.Method, in.BankReference)
	if err != nil {
		return nil, err
	}

	previous := inv.Status
	if err := inv.ApplyPayment(tx.Amount, in.ProofReference); err != nil {
		return nil, err
	}

	if err := s.store.RecordPayment(ctx, inv, tx); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return nil, model.NewValidationError("transaction_id", tx.ID, model.ErrDuplicateID)
		case errors.Is(err, storage.ErrNotFound):
			return nil, model.NewValidationError("invoice_id", inv.ID, model.ErrUnknownReference)
		}
		return nil, fmt.Errorf("record payment %s on %s: %w", tx.ID, inv.ID, err)
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("transaction_id", tx.ID).
		Str("amount", tx.Amount.StringFixed(model.MoneyPlaces)).
		Str("outstanding", inv.OutstandingBalance.StringFixed(model.MoneyPlaces)).
		Str("status", string(inv.Status)).
		Msg("payment recorded")

	s.publish(ctx, inv, previous)

	return &PaymentResult{Invoice: inv, Transaction: tx}, nil
}

type ReconcileResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Invoice     *model.Invoice     `json:"invoice"`
	// Promoted is true when this call moved the invoice to RECONCILED.
	Promoted bool `json:"promoted"`
}

// ReconcileTransaction confirms a transaction against settlement and promotes its
// invoice to RECONCILED once it is paid and every transaction is confirmed.
// Reconciling an already reconciled transaction is a successful no-op.
func (s *ReconciliationService) ReconcileTransaction(ctx context.Context, transactionID string) (*ReconcileResult, error) {
	tx, err := s.loadTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(tx.InvoiceReference)
	defer unlock()

	// re-read under the invoice lock
	if tx, err = s.loadTransaction(ctx, transactionID); err != nil {
		return nil, err
	}

	if tx.Reconcile() {
		if err := s.store.SaveTransaction(ctx, tx); err != nil {
			return nil, fmt.Errorf("reconcile transaction %s: %w", tx.ID, err)
		}
		s.log.Info().Str("transaction_id", tx.ID).Str("invoice_id", tx.InvoiceReference).Msg("transaction reconciled")
	}

	inv, err := s.loadInvoice(ctx, tx.InvoiceReference)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of %s: %w", inv.ID, err)
	}

	previous := inv.Status
	promoted := inv.PromoteReconciled(txs)
	if promoted {
		if err := s.store.SaveInvoice(ctx, inv); err != nil {
			return nil, fmt.Errorf("promote invoice %s: %w", inv.ID, err)
		}
		s.log.Info().Str("invoice_id", inv.ID).Int("transactions", len(txs)).Msg("invoice reconciled")
		s.publish(ctx, inv, previous)
	}

	return &ReconcileResult{Transaction: tx, Invoice: inv, Promoted: promoted}, nil
}

type SettleInput struct {
	Invoice  CreateInvoiceInput `json:"invoice"`
	Payments []PaymentInput     `json:"payments"`
}

// Settle runs the whole sequence for one order: create the invoice, record each
// payment, then reconcile every recorded transaction.
func (s *ReconciliationService) Settle(ctx context.Context, in SettleInput) (*model.Invoice, []model.Transaction, error) {
	inv, err := s.CreateInvoice(ctx, in.Invoice)
	if err != nil {
		return nil, nil, err
	}

	txs := make([]model.Transaction, 0, len(in.Payments))
	for _, p := range in.Payments {
		p.InvoiceID = inv.ID
		res, err := s.RecordPayment(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, *res.Transaction)
	}

	for i := range txs {
		res, err := s.ReconcileTransaction(ctx, txs[i].ID)
		if err != nil {
			return nil, nil, err
		}
		txs[i] = *res.Transaction
		inv = res.Invoice
	}

	return inv, txs, nil
}

func (s *ReconciliationService) Invoice(ctx context.Context, id string) (*model.Invoice, error) {
	return s.loadInvoice(ctx, id)
}

func (s *ReconciliationService) Transactions(ctx context.Context, invoiceID string) ([]model.Transaction, error) {
	if _, err := s.loadInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of %s: %w", invoiceID, err)
	}
	return txs, nil
}

// AwaitingSettlement lists transactions the settlement channel can still confirm.
func (s *ReconciliationService) AwaitingSettlement(ctx context.Context, limit int) ([]model.Transaction, error) {
	txs, err := s.store.ListAwaitingSettlement(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list awaiting settlement: %w", err)
	}
	return txs, nil
}

type Balance struct {
	Total       decimal.Decimal     `json:"total"`
	Outstanding decimal.Decimal     `json:"outstanding"`
	Paid        decimal.Decimal     `json:"paid"`
	Status      model.InvoiceStatus `json:"status"`
}

func (s *ReconciliationService) Balance(ctx context.Context, invoiceID string) (*Balance, error) {
	inv, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Total:       inv.Total,
		Outstanding: inv.OutstandingBalance,
		Paid:        inv.Paid(),
		Status:      inv.Status,
	}, nil
}

func (s *ReconciliationService) loadInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, model.NewValidationError("invoice_id", id, model.ErrUnknownReference)
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", id, err)
	}
	return inv, nil
}

func (s *ReconciliationService) loadTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, model.NewValidationError("transaction_id", id, model.ErrUnknownReference)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *ReconciliationService) ensureNewTransaction(ctx context.Context, id string) error {
	_, err := s.store.GetTransaction(ctx, id)
	switch {
	case err == nil:
		return model.NewValidationError("transaction_id", id, model.ErrDuplicateID)
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check transaction %s: %w", id, err)
	}
}

// publish tells the notifier about a committed status change. Delivery failures are
// logged only: the change is already durable.
func (s *ReconciliationService) publish(ctx context.Context, inv *model.Invoice, previous model.InvoiceStatus) {
	if s.notifier == nil || inv.Status == previous {
		return
	}

	ev := model.InvoiceEvent{
		InvoiceID:          inv.ID,
		ClientReference:    inv.ClientReference,
		Previous:           previous,
		Status:             inv.Status,
		OutstandingBalance: inv.OutstandingBalance,
		At:                 model.Now(),
	}
	if err := s.notifier.InvoiceStatusChanged(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", inv.ID).Str("status", string(inv.Status)).Msg("status notification failed")
	}
}
