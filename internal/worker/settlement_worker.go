package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reconciler/internal/logger"
	"reconciler/internal/model"
	"reconciler/internal/service"
)

type Reconciler interface {
	AwaitingSettlement(ctx context.Context, limit int) ([]model.Transaction, error)
	ReconcileTransaction(ctx context.Context, transactionID string) (*service.ReconcileResult, error)
}

type SettlementSource interface {
	GetSettlement(ctx context.Context, bankReference string) (*service.SettlementResponse, error)
}

// SettlementWorker polls the settlement system for pending transactions and
// reconciles the ones it reports as confirmed.
type SettlementWorker struct {
	reconciler Reconciler
	source     SettlementSource
	interval   time.Duration
	batchSize  int
	log        zerolog.Logger
}

func NewSettlementWorker(reconciler Reconciler, source SettlementSource, interval time.Duration, batchSize int) *SettlementWorker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 5
	}
	return &SettlementWorker{
		reconciler: reconciler,
		source:     source,
		interval:   interval,
		batchSize:  batchSize,
		log:        logger.WithComponent("settlement-worker"),
	}
}

func (w *SettlementWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Int("batch", w.batchSize).Msg("starting settlement worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("settlement worker stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				w.log.Error().Err(err).Msg("batch processing failed")
			}
		}
	}
}

// ProcessBatch checks one batch and returns how many transactions it reconciled.
func (w *SettlementWorker) ProcessBatch(ctx context.Context) (int, error) {
	txs, err := w.reconciler.AwaitingSettlement(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}

	reconciled := 0
	for _, tx := range txs {
		resp, err := w.source.GetSettlement(ctx, tx.BankReference)
		switch {
		case errors.Is(err, service.ErrRateLimited):
			w.log.Warn().Str("transaction_id", tx.ID).Msg("rate limited, stopping batch")
			return reconciled, nil
		case errors.Is(err, service.ErrSettlementNotFound):
			continue
		case err != nil:
			w.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to check settlement")
			continue
		}

		if resp.Status != service.SettlementConfirmed {
			if resp.Status == service.SettlementRejected {
				w.log.Warn().Str("transaction_id", tx.ID).Str("bank_reference", tx.BankReference).Msg("settlement rejected")
			}
			continue
		}

		if !resp.Amount.IsZero() && !model.Money(resp.Amount).Equal(tx.Amount) {
			w.log.Warn().
				Str("transaction_id", tx.ID).
				Str("expected", tx.Amount.StringFixed(model.MoneyPlaces)).
				Str("settled", resp.Amount.StringFixed(model.MoneyPlaces)).
				Msg("settled amount mismatch, leaving for manual review")
			continue
		}

		res, err := w.reconciler.ReconcileTransaction(ctx, tx.ID)
		if err != nil {
			w.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to reconcile transaction")
			continue
		}
		reconciled++
		w.log.Info().
			Str("transaction_id", tx.ID).
			Str("invoice_id", res.Invoice.ID).
			Str("invoice_status", string(res.Invoice.Status)).
			Msg("transaction settled")
	}

	return reconciled, nil
}
