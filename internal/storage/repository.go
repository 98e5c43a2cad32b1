package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"moneymanager/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements ledger.Store over a single SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; the driver serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	if err := repo.seedCategories(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}

	return repo, nil
}

// seedCategories inserts the default categories that are not there yet.
func (r *SQLiteRepository) seedCategories(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, group := range core.DefaultCategories {
		for _, name := range group.Names {
			if err := q.SeedCategory(ctx, group.Type.String(), name); err != nil {
				return fmt.Errorf("seed %s/%s: %w", group.Type, name, err)
			}
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return toCoreTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return toCoreTransaction(row)
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, in core.TransactionInput) (int64, error) {
	params, err := transactionParams(in)
	if err != nil {
		return 0, err
	}
	id, err := r.queries.CreateTransaction(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"type", params.Type,
		"amount_cents", params.AmountCents,
		"month", params.Month)

	return id, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (int64, error) {
	params, err := transactionParams(in)
	if err != nil {
		return 0, err
	}
	changed, err := r.queries.UpdateTransaction(ctx, id, params)
	if err != nil {
		return 0, fmt.Errorf("update transaction %d: %w", id, err)
	}
	return changed, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	changed, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return changed, nil
}

func (r *SQLiteRepository) ExportTransactions(ctx context.Context) ([]core.Transaction, error) {
	return r.ListTransactions(ctx)
}

func (r *SQLiteRepository) ListCategoriesByType(ctx context.Context, t core.TxType) ([]string, error) {
	t, err := core.ParseTxType(t.String())
	if err != nil {
		return nil, err
	}
	names, err := r.queries.ListCategoryNamesByType(ctx, t.String())
	if err != nil {
		return nil, fmt.Errorf("list %s categories: %w", t, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (r *SQLiteRepository) ListAllCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Type: core.TxType(c.Type), Name: c.CategoryName}
	}
	return out, nil
}

func (r *SQLiteRepository) AddCategory(ctx context.Context, t core.TxType, name string) (core.Category, error) {
	t, err := core.ParseTxType(t.String())
	if err != nil {
		return core.Category{}, err
	}
	name, err = core.NormalizeCategoryName(name)
	if err != nil {
		return core.Category{}, err
	}

	id, err := r.queries.CreateCategory(ctx, t.String(), name)
	if isUniqueViolation(err) {
		return core.Category{}, core.ErrDuplicateCategory
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("add category: %w", err)
	}
	return core.Category{ID: id, Type: t, Name: name}, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	changed, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if changed == 0 {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Summary(ctx context.Context, month string) (core.Summary, error) {
	row, err := r.queries.GetMonthTotals(ctx, month)
	if err != nil {
		return core.Summary{}, fmt.Errorf("month totals %s: %w", month, err)
	}
	return core.NewSummary(month, core.Money{Cents: row.IncomeCents}, core.Money{Cents: row.ExpenseCents}), nil
}

func (r *SQLiteRepository) ExpenseByCategory(ctx context.Context) ([]core.CategoryTotal, error) {
	rows, err := r.queries.GetExpenseTotalsByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("expense by category: %w", err)
	}
	out := make([]core.CategoryTotal, len(rows))
	for i, row := range rows {
		out[i] = core.CategoryTotal{Category: row.Label, Total: core.Money{Cents: row.TotalCents}}
	}
	return out, nil
}

func (r *SQLiteRepository) IncomeBySource(ctx context.Context) ([]core.SourceTotal, error) {
	rows, err := r.queries.GetIncomeTotalsBySource(ctx)
	if err != nil {
		return nil, fmt.Errorf("income by source: %w", err)
	}
	out := make([]core.SourceTotal, len(rows))
	for i, row := range rows {
		out[i] = core.SourceTotal{Source: row.Label, Total: core.Money{Cents: row.TotalCents}}
	}
	return out, nil
}

func (r *SQLiteRepository) MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error) {
	row, err := r.queries.GetMonthTotals(ctx, core.MonthKey(year, month))
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("monthly report %d-%02d: %w", year, month, err)
	}
	return core.MonthlyReport{
		Year:         year,
		Month:        month,
		TotalIncome:  core.Money{Cents: row.IncomeCents},
		TotalExpense: core.Money{Cents: row.ExpenseCents},
	}, nil
}

func (r *SQLiteRepository) YearlyReport(ctx context.Context, year int) ([]core.MonthTotals, error) {
	rows, err := r.queries.GetYearMonthTotals(ctx, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, fmt.Errorf("yearly report %d: %w", year, err)
	}
	out := make([]core.MonthTotals, len(rows))
	for i, row := range rows {
		out[i] = core.MonthTotals{
			Month:        row.Month,
			TotalIncome:  core.Money{Cents: row.IncomeCents},
			TotalExpense: core.Money{Cents: row.ExpenseCents},
		}
	}
	return out, nil
}

func transactionParams(in core.TransactionInput) (TransactionParams, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return TransactionParams{}, err
	}
	return TransactionParams{
		Type:        in.Type.String(),
		AmountCents: in.Amount.Cents,
		Category:    in.Category,
		Source:      in.Source,
		Description: in.Description,
		Date:        in.Date.String(),
		Month:       in.Month(),
	}, nil
}

func toCoreTransaction(row Transaction) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d has bad date %q: %w", row.ID, row.Date, err)
	}
	return core.Transaction{
		ID:          row.ID,
		Type:        core.TxType(row.Type),
		Amount:      core.Money{Cents: row.AmountCents},
		Category:    row.Category,
		Source:      row.Source,
		Description: row.Description,
		Date:        date,
		Month:       row.Month,
	}, nil
}

func toCoreTransactions(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := toCoreTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
