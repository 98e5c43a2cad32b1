package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moneymanager/internal/core"
)

const (
	ReportMonthly = "monthly"
	ReportYearly  = "yearly"
)

// ReportParams holds the report selector of the reports page.
type ReportParams struct {
	Kind  string
	Year  int
	Month int
}

// ParseReportParams reads kind, year and month from the query, defaulting
// to a monthly report of the month containing now. Unparsable numbers fall
// back to the defaults; range checks are left to the service.
func ParseReportParams(query url.Values, now time.Time) ReportParams {
	params := ReportParams{
		Kind:  ReportMonthly,
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if strings.TrimSpace(query.Get("kind")) == ReportYearly {
		params.Kind = ReportYearly
	}
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			params.Month = m
		}
	}

	return params
}

// ParseTransactionForm builds a transaction from the entry and edit forms.
// Source is only kept for income.
func ParseTransactionForm(form url.Values) (core.TransactionInput, error) {
	t, err := core.ParseTxType(form.Get("type"))
	if err != nil {
		return core.TransactionInput{}, err
	}
	cents, err := core.ParseDecimalToCents(form.Get("amount"))
	if err != nil {
		return core.TransactionInput{}, err
	}
	date, err := core.ParseDate(form.Get("date"))
	if err != nil {
		return core.TransactionInput{}, err
	}

	in := core.TransactionInput{
		Type:        t,
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(form.Get("category")),
		Description: sanitizeInput(form.Get("description")),
		Date:        date,
	}
	if t == core.Income {
		in.Source = sanitizeInput(form.Get("source"))
	}
	return in, in.Validate()
}

// pathID reads the positive {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// formType reads a transaction type, defaulting to expense like the entry form.
func formType(v string) core.TxType {
	if t, err := core.ParseTxType(v); err == nil {
		return t
	}
	return core.Expense
}
