// Package shell routes named operations from the UI boundary to the ledger
// service. Every operation takes a JSON array of positional arguments.
package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/export"
	"moneymanager/internal/log"
)

// Operation names accepted by Invoke.
const (
	OpGetTransactions        = "get-transactions"
	OpGetTransaction         = "get-transaction"
	OpAddTransaction         = "add-transaction"
	OpUpdateTransaction      = "update-transaction"
	OpDeleteTransaction      = "delete-transaction"
	OpGetCategories          = "get-categories"
	OpGetAllCustomCategories = "get-all-custom-categories"
	OpAddCategory            = "add-category"
	OpDeleteCategory         = "delete-category"
	OpGetSummary             = "get-summary"
	OpGetExpenseCategories   = "get-expense-categories"
	OpGetSources             = "get-sources"
	OpGetMonthlyReport       = "get-monthly-report"
	OpGetYearlyReport        = "get-yearly-report"
	OpExportData             = "export-data"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrBadArguments     = errors.New("bad arguments")
)

// Service is the ledger surface the router needs.
type Service interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	AddTransaction(ctx context.Context, in core.TransactionInput) (int64, error)
	UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (int64, error)
	DeleteTransaction(ctx context.Context, id int64) (int64, error)
	ListCategories(ctx context.Context, t core.TxType) ([]string, error)
	ListAllCategories(ctx context.Context) ([]core.Category, error)
	AddCategory(ctx context.Context, t core.TxType, name string) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	Summary(ctx context.Context, month string) (core.Summary, error)
	ExpenseByCategory(ctx context.Context) ([]core.CategoryTotal, error)
	IncomeBySource(ctx context.Context) ([]core.SourceTotal, error)
	MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error)
	YearlyReport(ctx context.Context, year int) ([]core.MonthTotals, error)
}

type Exporter interface {
	Export(ctx context.Context, req export.Request) (export.Result, error)
}

type handler func(ctx context.Context, args []json.RawMessage) (any, error)

type Router struct {
	svc      Service
	exporter Exporter
	now      func() time.Time
	logger   *log.Logger
	handlers map[string]handler
}

type Option func(*Router)

// WithClock sets the clock that decides the current month.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Router) { r.logger = l.WithComponent(log.ComponentShell) }
}

func NewRouter(svc Service, exporter Exporter, opts ...Option) *Router {
	r := &Router{
		svc:      svc,
		exporter: exporter,
		now:      time.Now,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.handlers = map[string]handler{
		OpGetTransactions:        r.getTransactions,
		OpGetTransaction:         r.getTransaction,
		OpAddTransaction:         r.addTransaction,
		OpUpdateTransaction:      r.updateTransaction,
		OpDeleteTransaction:      r.deleteTransaction,
		OpGetCategories:          r.getCategories,
		OpGetAllCustomCategories: r.getAllCategories,
		OpAddCategory:            r.addCategory,
		OpDeleteCategory:         r.deleteCategory,
		OpGetSummary:             r.getSummary,
		OpGetExpenseCategories:   r.getExpenseCategories,
		OpGetSources:             r.getSources,
		OpGetMonthlyReport:       r.getMonthlyReport,
		OpGetYearlyReport:        r.getYearlyReport,
		OpExportData:             r.exportData,
	}
	return r
}

// Operations lists the accepted operation names, sorted.
func (r *Router) Operations() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// CurrentMonth is the YYYY-MM key of the router clock.
func (r *Router) CurrentMonth() string {
	now := r.now()
	return core.MonthKey(now.Year(), int(now.Month()))
}

// Invoke runs op with rawArgs, a JSON array (empty or null means no args).
func (r *Router) Invoke(ctx context.Context, op string, rawArgs json.RawMessage) (any, error) {
	h, ok := r.handlers[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	var args []json.RawMessage
	if trimmed := strings.TrimSpace(string(rawArgs)); trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, fmt.Errorf("%w: arguments must be a JSON array", ErrBadArguments)
		}
	}
	res, err := h(ctx, args)
	if err != nil {
		r.logger.DebugContext(ctx, "Operation failed", log.FieldOperation, op, log.FieldError, err)
		return nil, err
	}
	return res, nil
}

func (r *Router) getTransactions(ctx context.Context, _ []json.RawMessage) (any, error) {
	return r.svc.ListTransactions(ctx)
}

func (r *Router) getTransaction(ctx context.Context, args []json.RawMessage) (any, error) {
	id, err := argID(args, 0)
	if err != nil {
		return nil, err
	}
	return r.svc.GetTransaction(ctx, id)
}

func (r *Router) addTransaction(ctx context.Context, args []json.RawMessage) (any, error) {
	in, err := argInput(args, 0)
	if err != nil {
		return nil, err
	}
	id, err := r.svc.AddTransaction(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"id": id}, nil
}

func (r *Router) updateTransaction(ctx context.Context, args []json.RawMessage) (any, error) {
	id, err := argID(args, 0)
	if err != nil {
		return nil, err
	}
	in, err := argInput(args, 1)
	if err != nil {
		return nil, err
	}
	changed, err := r.svc.UpdateTransaction(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"changes": changed}, nil
}

func (r *Router) deleteTransaction(ctx context.Context, args []json.RawMessage) (any, error) {
	id, err := argID(args, 0)
	if err != nil {
		return nil, err
	}
	changed, err := r.svc.DeleteTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"changes": changed}, nil
}

func (r *Router) getCategories(ctx context.Context, args []json.RawMessage) (any, error) {
	var s string
	if err := arg(args, 0, &s); err != nil {
		return nil, err
	}
	t, err := core.ParseTxType(s)
	if err != nil {
		return nil, err
	}
	return r.svc.ListCategories(ctx, t)
}

func (r *Router) getAllCategories(ctx context.Context, _ []json.RawMessage) (any, error) {
	return r.svc.ListAllCategories(ctx)
}

// addCategory accepts either {"type":..,"category_name":..} or two strings.
func (r *Router) addCategory(ctx context.Context, args []json.RawMessage) (any, error) {
	var typ, name string
	if len(args) >= 2 {
		if err := arg(args, 0, &typ); err != nil {
			return nil, err
		}
		if err := arg(args, 1, &name); err != nil {
			return nil, err
		}
	} else {
		var body struct {
			Type string `json:"type"`
			Name string `json:"category_name"`
		}
		if err := arg(args, 0, &body); err != nil {
			return nil, err
		}
		typ, name = body.Type, body.Name
	}
	t, err := core.ParseTxType(typ)
	if err != nil {
		return nil, err
	}
	return r.svc.AddCategory(ctx, t, name)
}

func (r *Router) deleteCategory(ctx context.Context, args []json.RawMessage) (any, error) {
	id, err := argID(args, 0)
	if err != nil {
		return nil, err
	}
	if err := r.svc.DeleteCategory(ctx, id); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

// getSummary uses the current month unless a YYYY-MM key is given.
func (r *Router) getSummary(ctx context.Context, args []json.RawMessage) (any, error) {
	month := r.CurrentMonth()
	if len(args) > 0 {
		var s string
		if err := arg(args, 0, &s); err != nil {
			return nil, err
		}
		if s != "" {
			month = s
		}
	}
	return r.svc.Summary(ctx, month)
}

func (r *Router) getExpenseCategories(ctx context.Context, _ []json.RawMessage) (any, error) {
	return r.svc.ExpenseByCategory(ctx)
}

func (r *Router) getSources(ctx context.Context, _ []json.RawMessage) (any, error) {
	return r.svc.IncomeBySource(ctx)
}

func (r *Router) getMonthlyReport(ctx context.Context, args []json.RawMessage) (any, error) {
	year, err := argInt(args, 0)
	if err != nil {
		return nil, err
	}
	month, err := argInt(args, 1)
	if err != nil {
		return nil, err
	}
	return r.svc.MonthlyReport(ctx, year, month)
}

func (r *Router) getYearlyReport(ctx context.Context, args []json.RawMessage) (any, error) {
	year, err := argInt(args, 0)
	if err != nil {
		return nil, err
	}
	return r.svc.YearlyReport(ctx, year)
}

func (r *Router) exportData(ctx context.Context, args []json.RawMessage) (any, error) {
	var req export.Request
	if len(args) > 0 {
		if err := arg(args, 0, &req); err != nil {
			return nil, err
		}
	}
	return r.exporter.Export(ctx, req)
}

func arg(args []json.RawMessage, i int, dst any) error {
	if i >= len(args) {
		return fmt.Errorf("%w: missing argument %d", ErrBadArguments, i+1)
	}
	if err := json.Unmarshal(args[i], dst); err != nil {
		// Field-level validation failures keep their own classification.
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i+1, err)
	}
	return nil
}

// argInt accepts a JSON number or a numeric string such as "03", as form
// values arrive.
func argInt(args []json.RawMessage, i int) (int, error) {
	var raw json.RawMessage
	if err := arg(args, i, &raw); err != nil {
		return 0, err
	}
	text := string(raw)
	var s string
	if json.Unmarshal(raw, &s) == nil {
		text = strings.TrimSpace(s)
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: argument %d must be an integer", ErrBadArguments, i+1)
	}
	return v, nil
}

func argID(args []json.RawMessage, i int) (int64, error) {
	v, err := argInt(args, i)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: id must be positive", ErrBadArguments)
	}
	return int64(v), nil
}

func argInput(args []json.RawMessage, i int) (core.TransactionInput, error) {
	var in core.TransactionInput
	if err := arg(args, i, &in); err != nil {
		return core.TransactionInput{}, err
	}
	return in, nil
}
