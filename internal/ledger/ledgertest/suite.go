// Package ledgertest holds the behavioral tests every ledger.Store backend
// must pass.
package ledgertest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"moneymanager/internal/core"
	"moneymanager/internal/ledger"
)

// Factory returns a fresh, empty (apart from seeded categories) store.
type Factory func(t *testing.T) ledger.Store

func Input(t *testing.T, typ core.TxType, amount, category, source, date string) core.TransactionInput {
	t.Helper()
	cents, err := core.ParseDecimalToCents(amount)
	require.NoError(t, err)
	d, err := core.ParseDate(date)
	require.NoError(t, err)
	return core.TransactionInput{
		Type:     typ,
		Amount:   core.Money{Cents: cents},
		Category: category,
		Source:   source,
		Date:     d,
	}
}

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("ListOrder", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("UpdateRecomputesMonth", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("RejectsInvalidInput", func(t *testing.T) { testValidation(t, newStore(t)) })
	t.Run("SingleExpenseReports", func(t *testing.T) { testSingleExpenseReports(t, newStore(t)) })
	t.Run("Aggregates", func(t *testing.T) { testAggregates(t, newStore(t)) })
	t.Run("EmptyAggregates", func(t *testing.T) { testEmptyAggregates(t, newStore(t)) })
	t.Run("YearlyReport", func(t *testing.T) { testYearly(t, newStore(t)) })
	t.Run("SeededCategories", func(t *testing.T) { testSeeded(t, newStore(t)) })
	t.Run("CategoryLifecycle", func(t *testing.T) { testCategories(t, newStore(t)) })
}

func testCreateAndGet(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	in := Input(t, core.Income, "5000", "راتب", "شركة", "2024-03-01")
	in.Description = "  march salary "

	id, err := s.CreateTransaction(ctx, in)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.GetTransaction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, core.Income, got.Type)
	require.Equal(t, int64(500000), got.Amount.Cents)
	require.Equal(t, "march salary", got.Description)
	require.Equal(t, "2024-03-01", got.Date.String())
	require.Equal(t, "2024-03", got.Month)

	_, err = s.GetTransaction(ctx, id+1000)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testListOrder(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	a, err := s.CreateTransaction(ctx, Input(t, core.Expense, "10", "طعام", "", "2024-03-05"))
	require.NoError(t, err)
	b, err := s.CreateTransaction(ctx, Input(t, core.Expense, "20", "طعام", "", "2024-03-10"))
	require.NoError(t, err)
	c, err := s.CreateTransaction(ctx, Input(t, core.Expense, "30", "طعام", "", "2024-03-05"))
	require.NoError(t, err)

	list, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []int64{b, c, a}, ids(list))

	exported, err := s.ExportTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, list, exported)
}

func testUpdate(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	orig := Input(t, core.Income, "5000", "راتب", "شركة", "2024-03-15")
	orig.Description = "march salary"
	id, err := s.CreateTransaction(ctx, orig)
	require.NoError(t, err)

	// Every field is replaced: type flips and the emptied source and
	// description stay empty rather than keeping the old values.
	up := Input(t, core.Expense, "75.5", "مواصلات", "", "2024-04-02")
	changed, err := s.UpdateTransaction(ctx, id, up)
	require.NoError(t, err)
	require.Equal(t, int64(1), changed)

	got, err := s.GetTransaction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, up.Apply(id), got)
	require.Equal(t, "2024-04", got.Month)
	require.Empty(t, got.Source)
	require.Empty(t, got.Description)

	changed, err = s.UpdateTransaction(ctx, id+1000, Input(t, core.Expense, "1", "طعام", "", "2024-04-02"))
	require.NoError(t, err)
	require.Zero(t, changed)
}

func testSingleExpenseReports(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, err := s.CreateTransaction(ctx, Input(t, core.Expense, "50", "طعام", "", "2024-03-15"))
	require.NoError(t, err)

	report, err := s.MonthlyReport(ctx, 2024, 3)
	require.NoError(t, err)
	require.Equal(t, core.MonthlyReport{Year: 2024, Month: 3, TotalExpense: core.Money{Cents: 5000}}, report)

	byCat, err := s.ExpenseByCategory(ctx)
	require.NoError(t, err)
	require.Equal(t, []core.CategoryTotal{{Category: "طعام", Total: core.Money{Cents: 5000}}}, byCat)
}

func testDelete(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	id, err := s.CreateTransaction(ctx, Input(t, core.Expense, "50", "طعام", "", "2024-03-15"))
	require.NoError(t, err)

	changed, err := s.DeleteTransaction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), changed)

	changed, err = s.DeleteTransaction(ctx, id)
	require.NoError(t, err)
	require.Zero(t, changed)

	list, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func testValidation(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	good := Input(t, core.Expense, "10", "طعام", "", "2024-03-01")

	cases := map[string]func(in *core.TransactionInput){
		"bad type":       func(in *core.TransactionInput) { in.Type = "transfer" },
		"zero amount":    func(in *core.TransactionInput) { in.Amount = core.Money{} },
		"negative":       func(in *core.TransactionInput) { in.Amount = core.Money{Cents: -100} },
		"empty category": func(in *core.TransactionInput) { in.Category = "   " },
		"missing date":   func(in *core.TransactionInput) { in.Date = core.Date{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := good
			mutate(&in)
			_, err := s.CreateTransaction(ctx, in)
			require.ErrorIs(t, err, core.ErrValidation)
		})
	}

	list, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func testAggregates(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	for _, in := range []core.TransactionInput{
		Input(t, core.Income, "5000", "راتب", "شركة", "2024-03-01"),
		Input(t, core.Expense, "1200", "إيجار", "", "2024-03-02"),
		Input(t, core.Expense, "300", "طعام", "", "2024-03-10"),
		Input(t, core.Expense, "100", "مواصلات", "", "2024-03-11"),
		Input(t, core.Expense, "200", "طعام", "", "2024-04-01"),
		Input(t, core.Income, "250", "عمل إضافي", "", "2024-03-12"),
	} {
		_, err := s.CreateTransaction(ctx, in)
		require.NoError(t, err)
	}

	sum, err := s.Summary(ctx, "2024-03")
	require.NoError(t, err)
	require.Equal(t, int64(525000), sum.TotalIncome.Cents)
	require.Equal(t, int64(160000), sum.TotalExpense.Cents)
	require.Equal(t, int64(365000), sum.Balance.Cents)

	byCat, err := s.ExpenseByCategory(ctx)
	require.NoError(t, err)
	require.Equal(t, []core.CategoryTotal{
		{Category: "إيجار", Total: core.Money{Cents: 120000}},
		{Category: "طعام", Total: core.Money{Cents: 50000}},
		{Category: "مواصلات", Total: core.Money{Cents: 10000}},
	}, byCat)

	// Income without a source is left out.
	bySource, err := s.IncomeBySource(ctx)
	require.NoError(t, err)
	require.Equal(t, []core.SourceTotal{{Source: "شركة", Total: core.Money{Cents: 500000}}}, bySource)

	report, err := s.MonthlyReport(ctx, 2024, 3)
	require.NoError(t, err)
	require.Equal(t, 2024, report.Year)
	require.Equal(t, 3, report.Month)
	require.Equal(t, sum.TotalIncome, report.TotalIncome)
	require.Equal(t, sum.TotalExpense, report.TotalExpense)
}

func testEmptyAggregates(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	sum, err := s.Summary(ctx, "1999-01")
	require.NoError(t, err)
	require.Equal(t, core.NewSummary("1999-01", core.Money{}, core.Money{}), sum)

	report, err := s.MonthlyReport(ctx, 1999, 1)
	require.NoError(t, err)
	require.True(t, report.TotalIncome.IsZero())
	require.True(t, report.TotalExpense.IsZero())

	byCat, err := s.ExpenseByCategory(ctx)
	require.NoError(t, err)
	require.Empty(t, byCat)

	yearly, err := s.YearlyReport(ctx, 1999)
	require.NoError(t, err)
	require.Empty(t, yearly)
}

func testYearly(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	for _, in := range []core.TransactionInput{
		Input(t, core.Income, "100", "راتب", "", "2024-01-15"),
		Input(t, core.Expense, "40", "طعام", "", "2024-01-20"),
		Input(t, core.Expense, "60", "طعام", "", "2024-11-02"),
		Input(t, core.Expense, "999", "طعام", "", "2023-12-31"),
		Input(t, core.Expense, "999", "طعام", "", "2025-01-01"),
	} {
		_, err := s.CreateTransaction(ctx, in)
		require.NoError(t, err)
	}

	rows, err := s.YearlyReport(ctx, 2024)
	require.NoError(t, err)
	require.Equal(t, []core.MonthTotals{
		{Month: "2024-01", TotalIncome: core.Money{Cents: 10000}, TotalExpense: core.Money{Cents: 4000}},
		{Month: "2024-11", TotalIncome: core.Money{}, TotalExpense: core.Money{Cents: 6000}},
	}, rows)
}

func testSeeded(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	income, err := s.ListCategoriesByType(ctx, core.Income)
	require.NoError(t, err)
	require.Len(t, income, 6)
	require.Contains(t, income, "راتب")

	expense, err := s.ListCategoriesByType(ctx, core.Expense)
	require.NoError(t, err)
	require.Len(t, expense, 9)
	require.Contains(t, expense, "أخرى")

	all, err := s.ListAllCategories(ctx)
	require.NoError(t, err)
	require.Len(t, all, 15)
	// Expense sorts before income.
	require.Equal(t, core.Expense, all[0].Type)
	require.Equal(t, core.Income, all[len(all)-1].Type)
}

func testCategories(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	cat, err := s.AddCategory(ctx, core.Expense, "  هاتف ")
	require.NoError(t, err)
	require.Equal(t, "هاتف", cat.Name)
	require.Equal(t, core.Expense, cat.Type)

	_, err = s.AddCategory(ctx, core.Expense, "هاتف")
	require.ErrorIs(t, err, core.ErrDuplicateCategory)

	// The same name under the other type is a different category.
	_, err = s.AddCategory(ctx, core.Income, "هاتف")
	require.NoError(t, err)

	_, err = s.AddCategory(ctx, core.Expense, "   ")
	require.ErrorIs(t, err, core.ErrValidation)

	// Deleting a category leaves transactions that use it untouched.
	id, err := s.CreateTransaction(ctx, Input(t, core.Expense, "15", "هاتف", "", "2024-05-01"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteCategory(ctx, cat.ID))

	names, err := s.ListCategoriesByType(ctx, core.Expense)
	require.NoError(t, err)
	require.NotContains(t, names, "هاتف")

	tx, err := s.GetTransaction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "هاتف", tx.Category)

	err = s.DeleteCategory(ctx, cat.ID)
	require.True(t, errors.Is(err, core.ErrNotFound))
}

func ids(list []core.Transaction) []int64 {
	out := make([]int64, len(list))
	for i, tx := range list {
		out[i] = tx.ID
	}
	return out
}
