package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"reconciler/internal/model"
)

const invoiceColumns = `id, order_reference, issue_date, total, outstanding_balance, client_reference, status, payment_date, proof_reference`

// SaveInvoice upserts the full invoice snapshot.
func (g *Gateway) SaveInvoice(ctx context.Context, inv *model.Invoice) error {
	return g.write(ctx, "save", "invoice", inv.ID, func(ctx context.Context, tx *sql.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM invoices WHERE id = $1`, inv.ID)
		if err != nil {
			return err
		}
		if found {
			return updateInvoice(ctx, tx, inv)
		}
		return insertInvoice(ctx, tx, inv)
	})
}

// CreateInvoice inserts a new invoice and fails with ErrDuplicate if the id or order reference is taken.
func (g *Gateway) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	return g.write(ctx, "create", "invoice", inv.ID, func(ctx context.Context, tx *sql.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM invoices WHERE id = $1`, inv.ID)
		if err != nil {
			return err
		}
		if found {
			return ErrDuplicate
		}
		return insertInvoice(ctx, tx, inv)
	})
}

func insertInvoice(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (`+invoiceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID,
		inv.OrderReference,
		inv.IssueDate,
		inv.Total.StringFixed(model.MoneyPlaces),
		inv.OutstandingBalance.StringFixed(model.MoneyPlaces),
		inv.ClientReference,
		string(inv.Status),
		nullTime(inv.PaymentDate),
		nullString(inv.ProofReference),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func updateInvoice(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET order_reference = $1, issue_date = $2, total = $3, outstanding_balance = $4,
		    client_reference = $5, status = $6, payment_date = $7, proof_reference = $8
		WHERE id = $9`,
		inv.OrderReference,
		inv.IssueDate,
		inv.Total.StringFixed(model.MoneyPlaces),
		inv.OutstandingBalance.StringFixed(model.MoneyPlaces),
		inv.ClientReference,
		string(inv.Status),
		nullTime(inv.PaymentDate),
		nullString(inv.ProofReference),
		inv.ID,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

func (g *Gateway) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	row := g.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, g.read("get", "invoice", id, err)
	}
	return inv, nil
}

func scanInvoice(row scanner) (*model.Invoice, error) {
	var (
		inv         model.Invoice
		total       decimal.Decimal
		outstanding decimal.Decimal
		status      string
		paymentDate sql.NullTime
		proof       sql.NullString
	)
	err := row.Scan(
		&inv.ID,
		&inv.OrderReference,
		&inv.IssueDate,
		&total,
		&outstanding,
		&inv.ClientReference,
		&status,
		&paymentDate,
		&proof,
	)
	if err != nil {
		return nil, err
	}

	st, err := model.ParseInvoiceStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan invoice %s: %w", inv.ID, err)
	}
	inv.Status = st
	inv.Total = model.Money(total)
	inv.OutstandingBalance = model.Money(outstanding)
	inv.IssueDate = inv.IssueDate.UTC()
	inv.PaymentDate = timePtr(paymentDate)
	inv.ProofReference = proof.String

	return &inv, nil
}
