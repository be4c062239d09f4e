// Package storage is the persistence gateway for invoices, transactions and operators.
//
// Every write runs in its own local transaction that is committed or rolled back
// before the call returns. Writes are retried under the configured retry.Policy
// when the store reports contention; reads are not retried.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reconciler/internal/logger"
	"reconciler/internal/retry"
)

type Gateway struct {
	db     *sql.DB
	policy retry.Policy
	log    zerolog.Logger
}

// NewGateway takes ownership of nothing: the caller keeps db open for the gateway's lifetime.
// A policy without a classifier retries on IsTransient.
func NewGateway(db *sql.DB, policy retry.Policy) *Gateway {
	g := &Gateway{
		db:  db,
		log: logger.WithComponent("storage"),
	}

	if policy.Retryable == nil {
		policy.Retryable = IsTransient
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			g.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("store busy, retrying write")
		}
	}
	g.policy = policy

	return g
}

type txFunc func(ctx context.Context, tx *sql.Tx) error

// write runs fn inside a fresh transaction per attempt.
func (g *Gateway) write(ctx context.Context, op, entity, id string, fn txFunc) error {
	attempts := 0
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		return g.inTx(ctx, fn)
	})
	if err == nil {
		return nil
	}

	serr := &StorageError{
		Op:        op,
		Entity:    entity,
		ID:        id,
		Attempts:  attempts,
		Transient: IsTransient(err),
		Err:       err,
	}
	if errors.Is(err, retry.ErrExhausted) {
		g.log.Error().Err(err).Str("op", op).Str("id", id).Int("attempts", attempts).Msg("write retries exhausted")
	}
	return serr
}

func (g *Gateway) inTx(ctx context.Context, fn txFunc) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (g *Gateway) read(op, entity, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return &StorageError{
		Op:        op,
		Entity:    entity,
		ID:        id,
		Attempts:  1,
		Transient: IsTransient(err),
		Err:       err,
	}
}

func exists(ctx context.Context, tx *sql.Tx, query, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check existence: %w", err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
