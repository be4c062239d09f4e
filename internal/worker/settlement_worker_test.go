package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciler/internal/model"
	"reconciler/internal/service"
)

type fakeReconciler struct {
	mu         sync.Mutex
	pending    []model.Transaction
	reconciled []string
	listErr    error
}

func (f *fakeReconciler) AwaitingSettlement(_ context.Context, limit int) ([]model.Transaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeReconciler) ReconcileTransaction(_ context.Context, id string) (*service.ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, id)
	return &service.ReconcileResult{
		Transaction: &model.Transaction{ID: id},
		Invoice:     &model.Invoice{ID: "INV-001", Status: model.InvoicePaid},
	}, nil
}

type fakeSource map[string]*service.SettlementResponse

func (f fakeSource) GetSettlement(_ context.Context, ref string) (*service.SettlementResponse, error) {
	switch ref {
	case "REF-LIMIT":
		return nil, service.ErrRateLimited
	case "REF-ERR":
		return nil, errors.New("connection refused")
	}
	resp, ok := f[ref]
	if !ok {
		return nil, service.ErrSettlementNotFound
	}
	return resp, nil
}

func pendingTx(id, ref, amount string) model.Transaction {
	return model.Transaction{ID: id, BankReference: ref, Amount: decimal.RequireFromString(amount), Status: model.TransactionPending}
}

func TestProcessBatchReconcilesConfirmedOnly(t *testing.T) {
	rec := &fakeReconciler{pending: []model.Transaction{
		pendingTx("TRX-001", "REF-001", "100"),
		pendingTx("TRX-002", "REF-002", "50"),
		pendingTx("TRX-003", "REF-003", "20"),
		pendingTx("TRX-004", "REF-404", "10"),
		pendingTx("TRX-005", "REF-ERR", "10"),
		pendingTx("TRX-006", "REF-006", "30"),
		pendingTx("TRX-007", "REF-007", "75.50"),
	}}
	src := fakeSource{
		"REF-001": {Reference: "REF-001", Status: service.SettlementConfirmed, Amount: decimal.RequireFromString("100.00")},
		"REF-002": {Reference: "REF-002", Status: service.SettlementPending},
		"REF-003": {Reference: "REF-003", Status: service.SettlementRejected},
		"REF-006": {Reference: "REF-006", Status: service.SettlementConfirmed, Amount: decimal.RequireFromString("29.99")},
		"REF-007": {Reference: "REF-007", Status: service.SettlementConfirmed},
	}

	w := NewSettlementWorker(rec, src, time.Second, 10)
	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"TRX-001", "TRX-007"}, rec.reconciled)
}

func TestProcessBatchStopsWhenRateLimited(t *testing.T) {
	rec := &fakeReconciler{pending: []model.Transaction{
		pendingTx("TRX-001", "REF-LIMIT", "10"),
		pendingTx("TRX-002", "REF-002", "10"),
	}}
	src := fakeSource{"REF-002": {Status: service.SettlementConfirmed}}

	n, err := NewSettlementWorker(rec, src, time.Second, 10).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rec.reconciled)
}

func TestProcessBatchRespectsBatchSize(t *testing.T) {
	rec := &fakeReconciler{pending: []model.Transaction{
		pendingTx("TRX-001", "REF-001", "10"),
		pendingTx("TRX-002", "REF-002", "10"),
	}}
	src := fakeSource{
		"REF-001": {Status: service.SettlementConfirmed},
		"REF-002": {Status: service.SettlementConfirmed},
	}

	n, err := NewSettlementWorker(rec, src, time.Second, 1).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcessBatchListError(t *testing.T) {
	rec := &fakeReconciler{listErr: errors.New("db gone")}
	_, err := NewSettlementWorker(rec, fakeSource{}, time.Second, 1).ProcessBatch(context.Background())
	require.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	rec := &fakeReconciler{pending: []model.Transaction{pendingTx("TRX-001", "REF-001", "10")}}
	src := fakeSource{"REF-001": {Status: service.SettlementConfirmed}}
	w := NewSettlementWorker(rec, src, 5*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.reconciled) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
