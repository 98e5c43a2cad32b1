package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
)

var ledgerHeader = []any{"ID", "Date", "Month", "Type", "Amount", "Category", "Source", "Description"}

// ledgerRows renders txs as A:H values, header first.
func ledgerRows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, ledgerHeader)
	for _, t := range txs {
		rows = append(rows, []any{
			t.ID,
			t.Date.String(),
			t.Month,
			t.Type.String(),
			t.Amount.Decimal().InexactFloat64(),
			t.Category,
			t.Source,
			t.Description,
		})
	}
	return rows
}

// parseLedgerRows converts an A2:H values matrix back into transactions.
// Blank rows are skipped; the month is recomputed from the date.
func parseLedgerRows(values [][]any) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(values))
	for i, row := range values {
		cols := toStrings(row)
		if isBlank(cols) {
			continue
		}
		t, err := parseLedgerRow(cols)
		if err != nil {
			// i+2: one for the header, one for 1-based rows.
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func parseLedgerRow(cols []string) (core.Transaction, error) {
	id, err := decimal.NewFromString(safeGet(cols, 0))
	if err != nil || !id.IsInteger() || !id.IsPositive() {
		return core.Transaction{}, fmt.Errorf("invalid id %q", safeGet(cols, 0))
	}
	date, err := core.ParseDate(safeGet(cols, 1))
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseTxType(safeGet(cols, 3))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(safeGet(cols, 4), ",", "."))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid amount %q", safeGet(cols, 4))
	}
	money, err := core.MoneyFromDecimal(amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          id.IntPart(),
		Type:        typ,
		Amount:      money,
		Category:    safeGet(cols, 5),
		Source:      safeGet(cols, 6),
		Description: safeGet(cols, 7),
		Date:        date,
		Month:       date.MonthKey(),
	}, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
