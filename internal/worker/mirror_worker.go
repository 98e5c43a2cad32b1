// Package worker consumes ledger events and keeps the spreadsheet mirror
// current.
package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"moneymanager/internal/amqp"
	"moneymanager/internal/log"
)

// EventConsumer delivers ledger events until ctx is done. *amqp.Client
// implements it.
type EventConsumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// Syncer mirrors the whole ledger once. *services.MirrorProcessor
// implements it.
type Syncer interface {
	Sync(ctx context.Context) (bool, error)
	Run(ctx context.Context) error
}

type MirrorWorker struct {
	consumer EventConsumer
	syncer   Syncer
	logger   *log.Logger
}

func NewMirrorWorker(consumer EventConsumer, syncer Syncer, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		consumer: consumer,
		syncer:   syncer,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single ledger event from AMQP. Every event leads
// to a full resync, so ordering and duplicates do not matter. A returned
// error makes the broker redeliver.
func (w *MirrorWorker) HandleEvent(ctx context.Context, e amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, string(e.Type),
		log.FieldMessageID, e.ID,
		log.FieldTransactionID, e.TransactionID,
		log.FieldCategoryID, e.CategoryID)

	changed, err := w.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync after %s: %w", e.Type, err)
	}
	w.logger.DebugContext(ctx, "Ledger event handled", "changed", changed)
	return nil
}

// Run consumes events and runs the periodic resync side by side. It
// returns when ctx is canceled or either side fails.
func (w *MirrorWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := w.consumer.Consume(gctx, w.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return w.syncer.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Mirror worker stopped")
	return nil
}
