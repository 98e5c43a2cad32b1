package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/ledger/ledgertest"
	"moneymanager/internal/ledger/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newTestService(t *testing.T) (*LedgerService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewLedgerService(memory.New(), pub, nil), pub
}

func TestLedgerService_TransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)

	in := ledgertest.Input(t, core.Income, "5000", "راتب", "شركة", "2024-03-01")
	in.Type = " INCOME "
	id, err := svc.AddTransaction(ctx, in)
	require.NoError(t, err)

	changed, err := svc.UpdateTransaction(ctx, id, ledgertest.Input(t, core.Income, "5100", "راتب", "شركة", "2024-03-01"))
	require.NoError(t, err)
	require.Equal(t, int64(1), changed)

	changed, err = svc.DeleteTransaction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), changed)

	require.Equal(t, []amqp.EventType{
		amqp.TransactionCreated,
		amqp.TransactionUpdated,
		amqp.TransactionDeleted,
	}, pub.types())
	require.Equal(t, id, pub.events[0].TransactionID)
	require.Equal(t, "2024-03", pub.events[0].Month)
}

func TestLedgerService_NoEventWhenNothingChanged(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)

	changed, err := svc.DeleteTransaction(ctx, 99)
	require.NoError(t, err)
	require.Zero(t, changed)

	changed, err = svc.UpdateTransaction(ctx, 99, ledgertest.Input(t, core.Expense, "1", "طعام", "", "2024-01-01"))
	require.NoError(t, err)
	require.Zero(t, changed)

	_, err = svc.AddTransaction(ctx, core.TransactionInput{Type: core.Expense})
	require.ErrorIs(t, err, core.ErrValidation)

	require.Empty(t, pub.types())
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewLedgerService(memory.New(), pub, nil)

	id, err := svc.AddTransaction(ctx, ledgertest.Input(t, core.Expense, "10", "طعام", "", "2024-01-01"))
	require.NoError(t, err)

	got, err := svc.GetTransaction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "2024-01", got.Month)
}

func TestLedgerService_WorksWithoutPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil)
	_, err := svc.AddCategory(context.Background(), core.Expense, "هاتف")
	require.NoError(t, err)
}

func TestLedgerService_Categories(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)

	c, err := svc.AddCategory(ctx, core.Expense, "هاتف")
	require.NoError(t, err)

	_, err = svc.AddCategory(ctx, core.Expense, "هاتف")
	require.Equal(t, core.ErrDuplicateCategory, err)
	require.Equal(t, "هذا التصنيف موجود بالفعل.", err.Error())

	require.NoError(t, svc.DeleteCategory(ctx, c.ID))
	require.ErrorIs(t, svc.DeleteCategory(ctx, c.ID), core.ErrNotFound)

	require.Equal(t, []amqp.EventType{amqp.CategoryAdded, amqp.CategoryDeleted}, pub.types())
}

func TestLedgerService_ReportArguments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Summary(ctx, "March")
	require.ErrorIs(t, err, core.ErrValidation)

	sum, err := svc.Summary(ctx, "2024-03")
	require.NoError(t, err)
	require.True(t, sum.Balance.IsZero())

	_, err = svc.MonthlyReport(ctx, 2024, 0)
	require.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.YearlyReport(ctx, 0)
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestLedgerService_Close(t *testing.T) {
	svc, pub := newTestService(t)
	require.NoError(t, svc.Close())
	require.True(t, pub.closed)
}
