package core

// Summary is the income/expense position of one month. A month without
// transactions yields an all-zero summary, never a missing one.
type Summary struct {
	Month        string `json:"month"`
	TotalIncome  Money  `json:"total_income"`
	TotalExpense Money  `json:"total_expense"`
	Balance      Money  `json:"balance"`
}

func NewSummary(month string, income, expense Money) Summary {
	return Summary{
		Month:        month,
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}
}

// CategoryTotal drives the expense distribution chart.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

type SourceTotal struct {
	Source string `json:"source"`
	Total  Money  `json:"total"`
}

type MonthlyReport struct {
	Year         int   `json:"year"`
	Month        int   `json:"month"`
	TotalIncome  Money `json:"totalIncome"`
	TotalExpense Money `json:"totalExpense"`
}

// Net is income minus expense.
func (r MonthlyReport) Net() Money {
	return r.TotalIncome.Sub(r.TotalExpense)
}

// MonthTotals is one row of a yearly report.
type MonthTotals struct {
	Month        string `json:"month"`
	TotalIncome  Money  `json:"totalIncome"`
	TotalExpense Money  `json:"totalExpense"`
}

func (r MonthTotals) Net() Money {
	return r.TotalIncome.Sub(r.TotalExpense)
}
