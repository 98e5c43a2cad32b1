package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds every statement the repository runs. Each method is one
// parameterized statement.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const transactionColumns = `id, type, amount_cents, category, source, description, date, month`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Type, &t.AmountCents, &t.Category, &t.Source, &t.Description, &t.Date, &t.Month)
	return t, err
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY date DESC, id DESC`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

type TransactionParams struct {
	Type        string
	AmountCents int64
	Category    string
	Source      string
	Description string
	Date        string
	Month       string
}

const createTransaction = `INSERT INTO transactions (type, amount_cents, category, source, description, date, month)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, arg TransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createTransaction,
		arg.Type, arg.AmountCents, arg.Category, arg.Source, arg.Description, arg.Date, arg.Month)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const updateTransaction = `UPDATE transactions
SET type = ?, amount_cents = ?, category = ?, source = ?, description = ?, date = ?, month = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, id int64, arg TransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Type, arg.AmountCents, arg.Category, arg.Source, arg.Description, arg.Date, arg.Month, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listCategoryNamesByType = `SELECT category_name FROM custom_categories WHERE type = ? ORDER BY category_name`

func (q *Queries) ListCategoryNamesByType(ctx context.Context, txType string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategoryNamesByType, txType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

const listCategories = `SELECT id, type, category_name FROM custom_categories ORDER BY type, category_name`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Type, &c.CategoryName); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const createCategory = `INSERT INTO custom_categories (type, category_name) VALUES (?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, txType, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, createCategory, txType, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const seedCategory = `INSERT OR IGNORE INTO custom_categories (type, category_name) VALUES (?, ?)`

func (q *Queries) SeedCategory(ctx context.Context, txType, name string) error {
	_, err := q.db.ExecContext(ctx, seedCategory, txType, name)
	return err
}

const deleteCategory = `DELETE FROM custom_categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getMonthTotals = `SELECT
    COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
FROM transactions WHERE month = ?`

func (q *Queries) GetMonthTotals(ctx context.Context, month string) (MonthTotalsRow, error) {
	row := MonthTotalsRow{Month: month}
	err := q.db.QueryRowContext(ctx, getMonthTotals, month).Scan(&row.IncomeCents, &row.ExpenseCents)
	return row, err
}

const getExpenseTotalsByCategory = `SELECT category, SUM(amount_cents) AS total
FROM transactions
WHERE type = 'expense'
GROUP BY category
ORDER BY total DESC, category ASC`

func (q *Queries) GetExpenseTotalsByCategory(ctx context.Context) ([]LabelTotalRow, error) {
	return q.labelTotals(ctx, getExpenseTotalsByCategory)
}

const getIncomeTotalsBySource = `SELECT source, SUM(amount_cents) AS total
FROM transactions
WHERE type = 'income' AND source != ''
GROUP BY source
ORDER BY total DESC, source ASC`

func (q *Queries) GetIncomeTotalsBySource(ctx context.Context) ([]LabelTotalRow, error) {
	return q.labelTotals(ctx, getIncomeTotalsBySource)
}

func (q *Queries) labelTotals(ctx context.Context, query string) ([]LabelTotalRow, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LabelTotalRow
	for rows.Next() {
		var r LabelTotalRow
		if err := rows.Scan(&r.Label, &r.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// The month key is a fixed-width YYYY-MM string, so a year is a prefix match.
const getYearMonthTotals = `SELECT month,
    SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END),
    SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END)
FROM transactions
WHERE month LIKE ? || '-%'
GROUP BY month
ORDER BY month ASC`

func (q *Queries) GetYearMonthTotals(ctx context.Context, year string) ([]MonthTotalsRow, error) {
	rows, err := q.db.QueryContext(ctx, getYearMonthTotals, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthTotalsRow
	for rows.Next() {
		var r MonthTotalsRow
		if err := rows.Scan(&r.Month, &r.IncomeCents, &r.ExpenseCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
