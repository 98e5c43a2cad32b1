package http

import (
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"moneymanager/internal/core"
	"moneymanager/internal/export"
	"moneymanager/internal/log"
)

// recentLimit is how many transactions the dashboard lists.
const recentLimit = 10

type pageData struct {
	Title  string
	Active string
	Flash  string
	Error  string
}

// newPage reads the one-shot messages left by the previous redirect.
func newPage(r *http.Request, title, active string) pageData {
	q := r.URL.Query()
	return pageData{
		Title:  title,
		Active: active,
		Flash:  sanitizeInput(q.Get("ok")),
		Error:  sanitizeInput(q.Get("err")),
	}
}

// txForm drives the transaction entry and edit forms.
type txForm struct {
	Action     string
	Submit     string
	Type       core.TxType
	Amount     string
	Category   string
	Source     string
	Desc       string
	Date       string
	Categories []string
}

// txTable is the transaction list; deletes return to Back.
type txTable struct {
	Rows []core.Transaction
	Back string
}

func table(rows []core.Transaction, back string) txTable {
	return txTable{Rows: rows, Back: back}
}

type bar struct {
	Name   string
	Amount core.Money
	Width  int
}

type dashboardPage struct {
	pageData
	Month       string
	Summary     core.Summary
	Recent      []core.Transaction
	HasMore     bool
	Bars        []bar
	Form        txForm
	ExportName  string
	SheetsReady bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()
	month := core.MonthKey(now.Year(), int(now.Month()))
	formTx := formType(r.URL.Query().Get("type"))

	page := dashboardPage{
		pageData:   newPage(r, "الرئيسية", "dashboard"),
		Month:      monthLabel(month),
		ExportName: export.SuggestedName(now),
		Form: txForm{
			Action: "/transactions",
			Submit: "إضافة المعاملة",
			Type:   formTx,
			Date:   now.Format("2006-01-02"),
		},
	}

	var (
		txs    []core.Transaction
		totals []core.CategoryTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page.Summary, err = s.svc.Summary(gctx, month)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.svc.ListTransactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.svc.ExpenseByCategory(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		page.Form.Categories, err = s.svc.ListCategories(gctx, formTx)
		return err
	})
	if err := g.Wait(); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Dashboard load failed", log.FieldError, err)
		page.Error = userMessage(err)
	}

	if len(txs) > recentLimit {
		page.Recent, page.HasMore = txs[:recentLimit], true
	} else {
		page.Recent = txs
	}
	page.Bars = distribution(totals)
	page.SheetsReady = s.mirror != nil

	s.render(w, r, "dashboard.html", "layout", page)
}

// distribution scales each category total against the largest one. Bars
// never drop below 2% so small amounts stay visible.
func distribution(totals []core.CategoryTotal) []bar {
	var maxCents int64
	for _, t := range totals {
		if t.Total.Cents > maxCents {
			maxCents = t.Total.Cents
		}
	}
	bars := make([]bar, 0, len(totals))
	for _, t := range totals {
		width := 0
		if maxCents > 0 && t.Total.Cents > 0 {
			width = int((t.Total.Cents*100 + maxCents/2) / maxCents)
			if width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		bars = append(bars, bar{Name: t.Category, Amount: t.Total, Width: width})
	}
	return bars
}

type transactionsPage struct {
	pageData
	Transactions []core.Transaction
	Editing      int64
	Form         txForm
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := transactionsPage{pageData: newPage(r, "كل المعاملات", "transactions")}

	txs, err := s.svc.ListTransactions(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "List transactions failed", log.FieldError, err)
		page.Error = userMessage(err)
	}
	page.Transactions = txs

	if v := r.URL.Query().Get("edit"); v != "" {
		if err := s.loadEditForm(r, v, &page); err != nil {
			page.Error = userMessage(err)
		}
	}

	s.render(w, r, "transactions.html", "layout", page)
}

// loadEditForm fills the inline edit form of transaction v. The category
// list follows the ?type= override so the form can switch type.
func (s *Server) loadEditForm(r *http.Request, v string, page *transactionsPage) error {
	ctx := r.Context()
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return core.ErrNotFound
	}
	tx, err := s.svc.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	t := tx.Type
	if o := r.URL.Query().Get("type"); o != "" {
		t = formType(o)
	}
	cats, err := s.svc.ListCategories(ctx, t)
	if err != nil {
		return err
	}

	page.Editing = id
	page.Form = txForm{
		Action:     "/transactions/" + strconv.FormatInt(id, 10),
		Submit:     "حفظ التغييرات",
		Type:       t,
		Amount:     tx.Amount.String(),
		Category:   tx.Category,
		Source:     tx.Source,
		Desc:       tx.Description,
		Date:       tx.Date.String(),
		Categories: withCurrent(cats, tx.Category),
	}
	return nil
}

// withCurrent keeps a transaction's category selectable in the edit form
// even after it was deleted from the category list.
func withCurrent(cats []string, current string) []string {
	if current == "" {
		return cats
	}
	for _, c := range cats {
		if c == current {
			return cats
		}
	}
	return append([]string{current}, cats...)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	back := backPath(r, "/")
	if err := r.ParseForm(); err != nil {
		redirectErr(w, r, back, err)
		return
	}
	in, err := ParseTransactionForm(r.PostForm)
	if err != nil {
		redirectErr(w, r, back, err)
		return
	}
	if _, err := s.svc.AddTransaction(r.Context(), in); err != nil {
		s.logFailure(r, "Add transaction failed", err)
		redirectErr(w, r, back, err)
		return
	}
	redirectOK(w, r, back, "تمت إضافة المعاملة بنجاح.")
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		redirectErr(w, r, "/transactions", core.ErrNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		redirectErr(w, r, "/transactions", err)
		return
	}
	in, err := ParseTransactionForm(r.PostForm)
	if err != nil {
		redirectErr(w, r, "/transactions", err)
		return
	}
	changed, err := s.svc.UpdateTransaction(r.Context(), id, in)
	if err != nil {
		s.logFailure(r, "Update transaction failed", err)
		redirectErr(w, r, "/transactions", err)
		return
	}
	if changed == 0 {
		redirectErr(w, r, "/transactions", core.ErrNotFound)
		return
	}
	redirectOK(w, r, "/transactions", "تم تحديث المعاملة.")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	back := backPath(r, "/transactions")
	id, ok := pathID(r)
	if !ok {
		redirectErr(w, r, back, core.ErrNotFound)
		return
	}
	changed, err := s.svc.DeleteTransaction(r.Context(), id)
	if err != nil {
		s.logFailure(r, "Delete transaction failed", err)
		redirectErr(w, r, back, err)
		return
	}
	if changed == 0 {
		redirectErr(w, r, back, core.ErrNotFound)
		return
	}
	redirectOK(w, r, back, "تم حذف المعاملة.")
}

type categoriesPage struct {
	pageData
	Expense []core.Category
	Income  []core.Category
	NewType core.TxType
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := categoriesPage{
		pageData: newPage(r, "التصنيفات", "categories"),
		NewType:  formType(r.URL.Query().Get("type")),
	}

	all, err := s.svc.ListAllCategories(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "List categories failed", log.FieldError, err)
		page.Error = userMessage(err)
	}
	for _, c := range all {
		if c.Type == core.Income {
			page.Income = append(page.Income, c)
		} else {
			page.Expense = append(page.Expense, c)
		}
	}

	s.render(w, r, "categories.html", "layout", page)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectErr(w, r, "/categories", err)
		return
	}
	t, err := core.ParseTxType(r.PostForm.Get("type"))
	if err != nil {
		redirectErr(w, r, "/categories", err)
		return
	}
	if _, err := s.svc.AddCategory(r.Context(), t, sanitizeInput(r.PostForm.Get("name"))); err != nil {
		s.logFailure(r, "Add category failed", err)
		redirectErr(w, r, "/categories", err)
		return
	}
	redirectOK(w, r, "/categories", "تمت إضافة التصنيف.")
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		redirectErr(w, r, "/categories", core.ErrNotFound)
		return
	}
	if err := s.svc.DeleteCategory(r.Context(), id); err != nil {
		s.logFailure(r, "Delete category failed", err)
		redirectErr(w, r, "/categories", err)
		return
	}
	redirectOK(w, r, "/categories", "تم حذف التصنيف.")
}

type monthOption struct {
	Value int
	Name  string
}

type reportsPage struct {
	pageData
	Params  ReportParams
	Months  []monthOption
	Monthly *core.MonthlyReport
	Yearly  []core.MonthTotals
	Shown   bool
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := reportsPage{
		pageData: newPage(r, "التقارير", "reports"),
		Params:   ParseReportParams(r.URL.Query(), s.now()),
	}
	for m := 1; m <= 12; m++ {
		page.Months = append(page.Months, monthOption{Value: m, Name: monthName(m)})
	}

	// The selector alone is shown until the form is submitted.
	if r.URL.Query().Has("kind") {
		var err error
		switch page.Params.Kind {
		case ReportYearly:
			page.Yearly, err = s.svc.YearlyReport(ctx, page.Params.Year)
		default:
			var rep core.MonthlyReport
			rep, err = s.svc.MonthlyReport(ctx, page.Params.Year, page.Params.Month)
			page.Monthly = &rep
		}
		if err != nil {
			s.logFailure(r, "Report failed", err)
			page.Error = userMessage(err)
			page.Monthly, page.Yearly = nil, nil
		} else {
			page.Shown = true
		}
	}

	s.render(w, r, "reports.html", "layout", page)
}

// handleExport writes the ledger to a file under the export directory, or
// into the spreadsheet. Clearing the file name cancels the export.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectErr(w, r, "/", err)
		return
	}
	req := export.Request{Target: r.PostForm.Get("target")}
	if req.Target != export.TargetSheets {
		name := sanitizeInput(r.PostForm.Get("name"))
		req.Path = &name
	}

	res, err := s.exporter.Export(r.Context(), req)
	switch {
	case err != nil:
		s.logFailure(r, "Export failed", err)
		redirectErr(w, r, "/", err)
	case res.Canceled:
		redirectOK(w, r, "/", "تم إلغاء التصدير.")
	default:
		redirectOK(w, r, "/", "تم تصدير البيانات بنجاح إلى: "+res.Location)
	}
}

type categoryOptions struct {
	Categories []string
	Selected   string
}

// handleCategoryOptions returns the <option> list of one transaction type.
func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := core.ParseTxType(q.Get("type"))
	if err != nil {
		http.Error(w, userMessage(err), http.StatusBadRequest)
		return
	}
	cats, err := s.svc.ListCategories(r.Context(), t)
	if err != nil {
		s.logFailure(r, "List categories failed", err)
		http.Error(w, userMessage(err), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "category_options.html", "category_options", categoryOptions{
		Categories: cats,
		Selected:   sanitizeInput(q.Get("selected")),
	})
}

func (s *Server) logFailure(r *http.Request, msg string, err error) {
	logger := log.FromContext(r.Context())
	if isUserError(err) {
		logger.DebugContext(r.Context(), msg, log.FieldError, err)
		return
	}
	logger.ErrorContext(r.Context(), msg, log.FieldError, err)
}

func isUserError(err error) bool {
	status, _ := ipcError(err)
	return status < http.StatusInternalServerError
}

// backPath returns the local page named by the "back" form field, or def.
func backPath(r *http.Request, def string) string {
	back := r.FormValue("back")
	if back == "" || !strings.HasPrefix(back, "/") || strings.HasPrefix(back, "//") || strings.ContainsAny(back, "?#\\") {
		return def
	}
	return back
}
