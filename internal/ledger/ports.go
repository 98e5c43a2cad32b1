// Package ledger declares the persistence ports of the money manager. Every
// backend (SQLite, in-memory) implements Store.
package ledger

import (
	"context"

	"moneymanager/internal/core"
)

// Ports for persistence adapters.
type (
	// TransactionStore owns the ledger rows. Update and Delete report the
	// number of rows changed; zero means no such id and is not an error.
	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		CreateTransaction(ctx context.Context, in core.TransactionInput) (int64, error)
		UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (int64, error)
		DeleteTransaction(ctx context.Context, id int64) (int64, error)
		// ExportTransactions returns the whole ledger in list order.
		ExportTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// CategoryStore owns the per-type category labels.
	CategoryStore interface {
		ListCategoriesByType(ctx context.Context, t core.TxType) ([]string, error)
		ListAllCategories(ctx context.Context) ([]core.Category, error)
		AddCategory(ctx context.Context, t core.TxType, name string) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error
	}

	// Reporter computes read-only aggregates over the ledger on every call.
	Reporter interface {
		Summary(ctx context.Context, month string) (core.Summary, error)
		ExpenseByCategory(ctx context.Context) ([]core.CategoryTotal, error)
		IncomeBySource(ctx context.Context) ([]core.SourceTotal, error)
		MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error)
		YearlyReport(ctx context.Context, year int) ([]core.MonthTotals, error)
	}

	Store interface {
		TransactionStore
		CategoryStore
		Reporter
		Ping(ctx context.Context) error
		Close() error
	}
)
