package core

// DefaultCategories are seeded into every category store on initialization.
// Order matters only for readability.
var DefaultCategories = []struct {
	Type  TxType
	Names []string
}{
	{Income, []string{"راتب", "عمل إضافي", "استثمار", "هدايا", "بيع", "أخرى"}},
	{Expense, []string{"إيجار", "طعام", "مواصلات", "فواتير", "تسوق", "ترفيه", "تعليم", "صحة", "أخرى"}},
}
