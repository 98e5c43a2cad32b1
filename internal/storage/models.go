package storage

// Transaction mirrors a row of the transactions table.
type Transaction struct {
	ID          int64
	Type        string
	AmountCents int64
	Category    string
	Source      string
	Description string
	Date        string
	Month       string
}

// Category mirrors a row of the custom_categories table.
type Category struct {
	ID           int64
	Type         string
	CategoryName string
}

type MonthTotalsRow struct {
	Month        string
	IncomeCents  int64
	ExpenseCents int64
}

type LabelTotalRow struct {
	Label      string
	TotalCents int64
}
