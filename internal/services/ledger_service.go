package services

import (
	"context"
	"errors"
	"fmt"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/ledger"
	"moneymanager/internal/log"
)

// EventPublisher announces ledger mutations. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, e amqp.LedgerEvent) error
}

// LedgerService fronts a ledger.Store. Writes go to the store first; the
// event publish afterwards is best effort.
type LedgerService struct {
	store     ledger.Store
	publisher EventPublisher
	logger    *log.Logger
}

// NewLedgerService wires the service. publisher may be nil.
func NewLedgerService(store ledger.Store, publisher EventPublisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// AddTransaction stores a new transaction and returns its id.
func (s *LedgerService) AddTransaction(ctx context.Context, in core.TransactionInput) (int64, error) {
	in = in.Normalize()
	id, err := s.store.CreateTransaction(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("add transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction added", log.NewFields().
		WithTransaction(id, in.Type.String(), in.Amount.Cents, in.Category, in.Month()).
		WithOperation(log.OpCreate).ToSlice()...)

	s.publish(ctx, amqp.NewTransactionEvent(amqp.TransactionCreated, id, in.Month()))
	return id, nil
}

// UpdateTransaction overwrites every field of id. Zero rows changed means
// the id does not exist and is reported, not treated as an error.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (int64, error) {
	in = in.Normalize()
	changed, err := s.store.UpdateTransaction(ctx, id, in)
	if err != nil {
		return 0, fmt.Errorf("update transaction %d: %w", id, err)
	}
	if changed == 0 {
		s.logger.WarnContext(ctx, "Update matched no transaction", log.FieldTransactionID, id)
		return 0, nil
	}

	s.logger.InfoContext(ctx, "Transaction updated", log.NewFields().
		WithTransaction(id, in.Type.String(), in.Amount.Cents, in.Category, in.Month()).
		WithOperation(log.OpUpdate).ToSlice()...)

	s.publish(ctx, amqp.NewTransactionEvent(amqp.TransactionUpdated, id, in.Month()))
	return changed, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	changed, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if changed == 0 {
		s.logger.WarnContext(ctx, "Delete matched no transaction", log.FieldTransactionID, id)
		return 0, nil
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTransactionID, id,
		log.FieldOperation, log.OpDelete)

	s.publish(ctx, amqp.NewTransactionEvent(amqp.TransactionDeleted, id, ""))
	return changed, nil
}

// Export returns the whole ledger, newest first.
func (s *LedgerService) Export(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.store.ExportTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("export transactions: %w", err)
	}
	return txs, nil
}

func (s *LedgerService) ListCategories(ctx context.Context, t core.TxType) ([]string, error) {
	return s.store.ListCategoriesByType(ctx, t)
}

func (s *LedgerService) ListAllCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListAllCategories(ctx)
}

func (s *LedgerService) AddCategory(ctx context.Context, t core.TxType, name string) (core.Category, error) {
	c, err := s.store.AddCategory(ctx, t, name)
	if errors.Is(err, core.ErrDuplicateCategory) {
		// Returned unwrapped: the message is shown to the user as is.
		return core.Category{}, err
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("add category: %w", err)
	}

	s.logger.InfoContext(ctx, "Category added",
		log.FieldCategoryID, c.ID,
		log.FieldTxType, c.Type.String(),
		log.FieldCategory, c.Name)

	s.publish(ctx, amqp.NewCategoryEvent(amqp.CategoryAdded, c.ID))
	return c, nil
}

func (s *LedgerService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Category deleted", log.FieldCategoryID, id)
	s.publish(ctx, amqp.NewCategoryEvent(amqp.CategoryDeleted, id))
	return nil
}

// Summary returns the totals of a YYYY-MM month.
func (s *LedgerService) Summary(ctx context.Context, month string) (core.Summary, error) {
	month, err := core.ParseMonthKey(month)
	if err != nil {
		return core.Summary{}, err
	}
	return s.store.Summary(ctx, month)
}

func (s *LedgerService) ExpenseByCategory(ctx context.Context) ([]core.CategoryTotal, error) {
	return s.store.ExpenseByCategory(ctx)
}

func (s *LedgerService) IncomeBySource(ctx context.Context) ([]core.SourceTotal, error) {
	return s.store.IncomeBySource(ctx)
}

func (s *LedgerService) MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.MonthlyReport{}, err
	}
	return s.store.MonthlyReport(ctx, year, month)
}

func (s *LedgerService) YearlyReport(ctx context.Context, year int) ([]core.MonthTotals, error) {
	if err := core.ValidateYearMonth(year, 1); err != nil {
		return nil, err
	}
	return s.store.YearlyReport(ctx, year)
}

// Ping reports whether the store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) publish(ctx context.Context, e amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		// The local write already succeeded; the mirror catches up on resync.
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, string(e.Type),
			log.FieldMessageID, e.ID,
			log.FieldError, err)
	}
}

// Close closes the store and the publisher when it is closable.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
