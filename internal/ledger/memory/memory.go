// Package memory is an in-process ledger.Store. Nothing survives a restart;
// it backs tests and DATA_BACKEND=memory.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"moneymanager/internal/core"
)

type Store struct {
	mu     sync.Mutex
	nextTx int64
	nextID int64
	items  []core.Transaction
	cats   []core.Category
}

// New returns a store seeded with the default categories.
func New() *Store {
	s := &Store{}
	for _, group := range core.DefaultCategories {
		for _, name := range group.Names {
			s.insertCategory(group.Type, name)
		}
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Transaction{}, s.items...)
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], nil
	}
	return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
}

func (s *Store) CreateTransaction(_ context.Context, in core.TransactionInput) (int64, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTx++
	s.items = append(s.items, in.Apply(s.nextTx))
	return s.nextTx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id int64, in core.TransactionInput) (int64, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return 0, nil
	}
	s.items[i] = in.Apply(id)
	return 1, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return 0, nil
	}
	s.items = slices.Delete(s.items, i, i+1)
	return 1, nil
}

func (s *Store) ExportTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.ListTransactions(ctx)
}

func (s *Store) ListCategoriesByType(_ context.Context, t core.TxType) ([]string, error) {
	t, err := core.ParseTxType(t.String())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := []string{}
	for _, c := range s.cats {
		if c.Type == t {
			names = append(names, c.Name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) ListAllCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Category{}, s.cats...)
	slices.SortFunc(out, func(a, b core.Category) int {
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) AddCategory(_ context.Context, t core.TxType, name string) (core.Category, error) {
	t, err := core.ParseTxType(t.String())
	if err != nil {
		return core.Category{}, err
	}
	name, err = core.NormalizeCategoryName(name)
	if err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.insertCategory(t, name)
	if !ok {
		return core.Category{}, core.ErrDuplicateCategory
	}
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.cats, func(c core.Category) bool { return c.ID == id })
	if i < 0 {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	s.cats = slices.Delete(s.cats, i, i+1)
	return nil
}

func (s *Store) Summary(_ context.Context, month string) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	income, expense := s.totals(func(t core.Transaction) bool { return t.Month == month })
	return core.NewSummary(month, income, expense), nil
}

func (s *Store) ExpenseByCategory(_ context.Context) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := s.groupBy(core.Expense, func(t core.Transaction) string { return t.Category })
	out := make([]core.CategoryTotal, len(groups))
	for i, g := range groups {
		out[i] = core.CategoryTotal{Category: g.label, Total: g.total}
	}
	return out, nil
}

func (s *Store) IncomeBySource(_ context.Context) ([]core.SourceTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := s.groupBy(core.Income, func(t core.Transaction) string { return t.Source })
	out := make([]core.SourceTotal, len(groups))
	for i, g := range groups {
		out[i] = core.SourceTotal{Source: g.label, Total: g.total}
	}
	return out, nil
}

func (s *Store) MonthlyReport(_ context.Context, year, month int) (core.MonthlyReport, error) {
	key := core.MonthKey(year, month)
	s.mu.Lock()
	defer s.mu.Unlock()
	income, expense := s.totals(func(t core.Transaction) bool { return t.Month == key })
	return core.MonthlyReport{Year: year, Month: month, TotalIncome: income, TotalExpense: expense}, nil
}

func (s *Store) YearlyReport(_ context.Context, year int) ([]core.MonthTotals, error) {
	prefix := fmt.Sprintf("%04d-", year)
	s.mu.Lock()
	defer s.mu.Unlock()
	byMonth := map[string]*core.MonthTotals{}
	for _, t := range s.items {
		if !strings.HasPrefix(t.Month, prefix) {
			continue
		}
		row, ok := byMonth[t.Month]
		if !ok {
			row = &core.MonthTotals{Month: t.Month}
			byMonth[t.Month] = row
		}
		if t.Type == core.Income {
			row.TotalIncome = row.TotalIncome.Add(t.Amount)
		} else {
			row.TotalExpense = row.TotalExpense.Add(t.Amount)
		}
	}
	out := make([]core.MonthTotals, 0, len(byMonth))
	for _, row := range byMonth {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b core.MonthTotals) int { return cmp.Compare(a.Month, b.Month) })
	return out, nil
}

// insertCategory assumes s.mu is held (or the store is not shared yet).
func (s *Store) insertCategory(t core.TxType, name string) (core.Category, bool) {
	for _, c := range s.cats {
		if c.Type == t && c.Name == name {
			return c, false
		}
	}
	s.nextID++
	c := core.Category{ID: s.nextID, Type: t, Name: name}
	s.cats = append(s.cats, c)
	return c, true
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.items, func(t core.Transaction) bool { return t.ID == id })
}

func (s *Store) totals(match func(core.Transaction) bool) (income, expense core.Money) {
	for _, t := range s.items {
		if !match(t) {
			continue
		}
		if t.Type == core.Income {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
	}
	return income, expense
}

type labelTotal struct {
	label string
	total core.Money
}

// groupBy sums amounts of type typ by label, skipping empty labels, ordered
// by total descending then label.
func (s *Store) groupBy(typ core.TxType, label func(core.Transaction) string) []labelTotal {
	sums := map[string]core.Money{}
	for _, t := range s.items {
		if t.Type != typ {
			continue
		}
		if l := label(t); l != "" {
			sums[l] = sums[l].Add(t.Amount)
		}
	}
	out := make([]labelTotal, 0, len(sums))
	for l, total := range sums {
		out = append(out, labelTotal{label: l, total: total})
	}
	slices.SortFunc(out, func(a, b labelTotal) int {
		if c := cmp.Compare(b.total.Cents, a.total.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.label, b.label)
	})
	return out
}
