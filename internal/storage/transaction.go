package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"reconciler/internal/model"
)

const transactionColumns = `id, amount, payment_method, invoice_reference, bank_reference, created_at, status, reconciled_at, reconciled`

// SaveTransaction upserts the full transaction snapshot.
func (g *Gateway) SaveTransaction(ctx context.Context, t *model.Transaction) error {
	return g.write(ctx, "save", "transaction", t.ID, func(ctx context.Context, tx *sql.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM transactions WHERE id = $1`, t.ID)
		if err != nil {
			return err
		}
		if found {
			return updateTransaction(ctx, tx, t)
		}
		return insertTransaction(ctx, tx, t)
	})
}

// CreateTransaction inserts a new transaction and fails with ErrDuplicate if the id is taken.
func (g *Gateway) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	return g.write(ctx, "create", "transaction", t.ID, func(ctx context.Context, tx *sql.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM transactions WHERE id = $1`, t.ID)
		if err != nil {
			return err
		}
		if found {
			return ErrDuplicate
		}
		return insertTransaction(ctx, tx, t)
	})
}

// RecordPayment commits the invoice snapshot and its new transaction together: either
// both rows are written or neither is. An existing transaction id yields ErrDuplicate.
func (g *Gateway) RecordPayment(ctx context.Context, inv *model.Invoice, t *model.Transaction) error {
	return g.write(ctx, "record payment", "transaction", t.ID, func(ctx context.Context, tx *sql.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM transactions WHERE id = $1`, t.ID)
		if err != nil {
			return err
		}
		if found {
			return ErrDuplicate
		}

		found, err = exists(ctx, tx, `SELECT 1 FROM invoices WHERE id = $1`, inv.ID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if err := updateInvoice(ctx, tx, inv); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, t)
	})
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID,
		t.Amount.StringFixed(model.MoneyPlaces),
		string(t.PaymentMethod),
		t.InvoiceReference,
		nullString(t.BankReference),
		t.CreatedAt,
		string(t.Status),
		nullTime(t.ReconciledAt),
		t.Reconciled,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func updateTransaction(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET amount = $1, payment_method = $2, invoice_reference = $3, bank_reference = $4,
		    created_at = $5, status = $6, reconciled_at = $7, reconciled = $8
		WHERE id = $9`,
		t.Amount.StringFixed(model.MoneyPlaces),
		string(t.PaymentMethod),
		t.InvoiceReference,
		nullString(t.BankReference),
		t.CreatedAt,
		string(t.Status),
		nullTime(t.ReconciledAt),
		t.Reconciled,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (g *Gateway) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := g.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, g.read("get", "transaction", id, err)
	}
	return t, nil
}

// ListTransactions returns every transaction applied to the invoice, oldest first.
func (g *Gateway) ListTransactions(ctx context.Context, invoiceID string) ([]model.Transaction, error) {
	return g.query(ctx, "list", invoiceID, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE invoice_reference = $1
		ORDER BY created_at ASC, id ASC`, invoiceID)
}

// ListAwaitingSettlement returns up to limit unreconciled transactions that carry a bank
// reference, oldest first. Transactions without one can only be reconciled by hand.
func (g *Gateway) ListAwaitingSettlement(ctx context.Context, limit int) ([]model.Transaction, error) {
	return g.query(ctx, "list-awaiting-settlement", "", `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE reconciled = $1 AND bank_reference IS NOT NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $2`, false, limit)
}

func (g *Gateway) query(ctx context.Context, op, id, query string, args ...any) ([]model.Transaction, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, g.read(op, "transaction", id, fmt.Errorf("query transactions: %w", err))
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, g.read(op, "transaction", id, fmt.Errorf("scan transaction: %w", err))
		}
		txs = append(txs, *t)
	}

	if err = rows.Err(); err != nil {
		return nil, g.read(op, "transaction", id, fmt.Errorf("rows iteration failed: %w", err))
	}

	return txs, nil
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		t            model.Transaction
		amount       decimal.Decimal
		method       string
		bankRef      sql.NullString
		status       string
		reconciledAt sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&amount,
		&method,
		&t.InvoiceReference,
		&bankRef,
		&t.CreatedAt,
		&status,
		&reconciledAt,
		&t.Reconciled,
	)
	if err != nil {
		return nil, err
	}

	if t.PaymentMethod, err = model.ParsePaymentMethod(method); err != nil {
		return nil, fmt.Errorf("scan transaction %s: %w", t.ID, err)
	}
	if t.Status, err = model.ParseTransactionStatus(status); err != nil {
		return nil, fmt.Errorf("scan transaction %s: %w", t.ID, err)
	}
	t.Amount = model.Money(amount)
	t.BankReference = bankRef.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.ReconciledAt = timePtr(reconciledAt)

	return &t, nil
}
