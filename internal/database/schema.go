package database

import (
	"context"
	"fmt"
)

// SQLite needs TIMESTAMP/DATE/BOOLEAN declared types for go-sqlite3 to scan back into
// time.Time and bool; amounts are kept as decimal text.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS operators (
    id TEXT PRIMARY KEY,
    login TEXT UNIQUE NOT NULL,
    password_hash BLOB NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY,
    order_reference TEXT NOT NULL,
    issue_date DATE NOT NULL,
    total TEXT NOT NULL,
    outstanding_balance TEXT NOT NULL,
    client_reference TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'PARTIALLY_PAID', 'PAID', 'RECONCILED')),
    payment_date DATE,
    proof_reference TEXT
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    amount TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    invoice_reference TEXT NOT NULL REFERENCES invoices(id),
    bank_reference TEXT,
    created_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'RECONCILED')),
    reconciled_at TIMESTAMP,
    reconciled BOOLEAN NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_order_reference ON invoices(order_reference);
CREATE INDEX IF NOT EXISTS idx_transactions_invoice ON transactions(invoice_reference);
CREATE INDEX IF NOT EXISTS idx_transactions_reconciled ON transactions(reconciled);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS operators (
    id TEXT PRIMARY KEY,
    login TEXT UNIQUE NOT NULL,
    password_hash BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY,
    order_reference TEXT NOT NULL,
    issue_date DATE NOT NULL,
    total NUMERIC(14,2) NOT NULL,
    outstanding_balance NUMERIC(14,2) NOT NULL,
    client_reference TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'PARTIALLY_PAID', 'PAID', 'RECONCILED')),
    payment_date DATE,
    proof_reference TEXT
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    amount NUMERIC(14,2) NOT NULL,
    payment_method TEXT NOT NULL,
    invoice_reference TEXT NOT NULL REFERENCES invoices(id),
    bank_reference TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'RECONCILED')),
    reconciled_at TIMESTAMPTZ,
    reconciled BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_order_reference ON invoices(order_reference);
CREATE INDEX IF NOT EXISTS idx_transactions_invoice ON transactions(invoice_reference);
CREATE INDEX IF NOT EXISTS idx_transactions_reconciled ON transactions(reconciled);
`

func InitSchema(ctx context.Context, db *DB) error {
	schema := sqliteSchema
	if db.Dialect == Postgres {
		schema = postgresSchema
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
