package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/ledger/ledgertest"
	"moneymanager/internal/ledger/memory"
	"moneymanager/internal/services"
	sheetsmem "moneymanager/internal/sheets/memory"
)

// fakeConsumer hands the queued events to the handler, then waits for ctx.
type fakeConsumer struct {
	events  []amqp.LedgerEvent
	results chan error
	err     error
}

func (c *fakeConsumer) Consume(ctx context.Context, handler amqp.Handler) error {
	for _, e := range c.events {
		c.results <- handler(ctx, e)
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type countingSyncer struct {
	syncs atomic.Int32
	err   error
}

func (s *countingSyncer) Sync(context.Context) (bool, error) {
	s.syncs.Add(1)
	return true, s.err
}

func (s *countingSyncer) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestHandleEventSyncsMirror(t *testing.T) {
	svc := services.NewLedgerService(memory.New(), nil, nil)
	mirror := sheetsmem.New()
	proc := services.NewMirrorProcessor(svc, mirror, services.MirrorProcessorConfig{Interval: time.Hour}, nil)
	w := NewMirrorWorker(nil, proc, nil)
	ctx := context.Background()

	id, err := svc.AddTransaction(ctx, ledgertest.Input(t, core.Expense, "9.99", "طعام", "", "2024-03-02"))
	require.NoError(t, err)

	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.TransactionCreated, id, "2024-03")))
	rows, err := mirror.ReadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, id, rows[0].ID)

	// A duplicate delivery is harmless.
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.TransactionCreated, id, "2024-03")))
	require.Equal(t, 1, mirror.Writes())
}

func TestHandleEventReturnsSyncError(t *testing.T) {
	boom := errors.New("sheets down")
	w := NewMirrorWorker(nil, &countingSyncer{err: boom}, nil)

	err := w.HandleEvent(context.Background(), amqp.NewCategoryEvent(amqp.CategoryAdded, 7))
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "category.added")
}

func TestRunConsumesUntilCanceled(t *testing.T) {
	consumer := &fakeConsumer{
		events: []amqp.LedgerEvent{
			amqp.NewTransactionEvent(amqp.TransactionCreated, 1, "2024-03"),
			amqp.NewTransactionEvent(amqp.TransactionDeleted, 1, "2024-03"),
		},
		results: make(chan error, 2),
	}
	syncer := &countingSyncer{}
	w := NewMirrorWorker(consumer, syncer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, <-consumer.results)
	require.NoError(t, <-consumer.results)
	require.Equal(t, int32(2), syncer.syncs.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunStopsOnConsumerFailure(t *testing.T) {
	boom := errors.New("channel closed for good")
	w := NewMirrorWorker(&fakeConsumer{err: boom, results: make(chan error)}, &countingSyncer{}, nil)

	select {
	case err := <-runAsync(w):
		require.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after consumer failure")
	}
}

func runAsync(w *MirrorWorker) <-chan error {
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	return done
}
