package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/export"
	"moneymanager/internal/ledger/memory"
	"moneymanager/internal/services"
	"moneymanager/internal/shell"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv *Server
	svc *services.LedgerService
	dir string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	svc := services.NewLedgerService(memory.New(), nil, nil)
	dir := t.TempDir()
	exp := export.NewExporter(svc, dir, nil, nil).WithClock(clock)

	srv, err := NewServer(":0", Deps{
		Service:  svc,
		Router:   shell.NewRouter(svc, exp, shell.WithClock(clock)),
		Exporter: exp,
		Now:      clock,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return testEnv{srv: srv, svc: svc, dir: dir}
}

func (e testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if method == http.MethodPost && !strings.HasPrefix(target, "/ipc/") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e testEnv) seed(t *testing.T, typ core.TxType, cents int64, category, date string) int64 {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	id, err := e.svc.AddTransaction(context.Background(), core.TransactionInput{
		Type: typ, Amount: core.Money{Cents: cents}, Category: category, Date: d,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func flashOf(t *testing.T, rr *httptest.ResponseRecorder) (path string, q url.Values) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (body %q)", rr.Code, rr.Body.String())
	}
	u, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	return u.Path, u.Query()
}

func TestNewServerRequiresDependencies(t *testing.T) {
	if _, err := NewServer(":0", Deps{}); err == nil {
		t.Fatal("expected an error without dependencies")
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr := env.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "http_requests_total 2") {
		t.Errorf("metrics missing request count:\n%s", rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "mirror_syncs_total") {
		t.Error("mirror metrics shown without a mirror")
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/", "")

	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("pages must not be cached, got %q", rr.Header().Get("Cache-Control"))
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/static/style.css", "/static/app.js"} {
		rr := env.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
			t.Errorf("%s Cache-Control = %q", path, rr.Header().Get("Cache-Control"))
		}
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, core.Income, 300000, "راتب", "2024-03-01")
	env.seed(t, core.Expense, 125050, "إيجار", "2024-03-02")
	env.seed(t, core.Expense, 2000, "طعام", "2024-02-20")

	rr := env.do(t, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`dir="rtl"`,
		"ملخص الشهر الحالي: مارس 2024",
		"3,000.00 ريال",
		"1,250.50 ريال",
		"1,749.50 ريال",
		"إيجار",
		"MoneyManager_2024-03-15.json",
		`value="2024-03-15"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, "تصدير إلى جداول Google") {
		t.Error("sheets export offered without a mirror")
	}
}

func TestDashboardListsOnlyRecent(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < recentLimit+2; i++ {
		env.seed(t, core.Expense, 100, "طعام", "2024-03-01")
	}
	body := env.do(t, http.MethodGet, "/", "").Body.String()
	if got := strings.Count(body, "/delete"); got != recentLimit {
		t.Errorf("dashboard lists %d rows, want %d", got, recentLimit)
	}
	if !strings.Contains(body, "عرض كل المعاملات") {
		t.Error("missing link to the full list")
	}
}

func TestCreateTransaction(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{
		"type": {"expense"}, "amount": {"12,50"}, "category": {"طعام"},
		"description": {"غداء"}, "date": {"2024-03-10"},
	}
	path, q := flashOf(t, env.do(t, http.MethodPost, "/transactions", form.Encode()))
	if path != "/" || q.Get("ok") == "" {
		t.Fatalf("redirect = %s %v", path, q)
	}

	txs, _ := env.svc.ListTransactions(context.Background())
	if len(txs) != 1 || txs[0].Amount.Cents != 1250 || txs[0].Month != "2024-03" {
		t.Fatalf("unexpected ledger %+v", txs)
	}

	form.Set("category", "")
	_, q = flashOf(t, env.do(t, http.MethodPost, "/transactions", form.Encode()))
	if q.Get("err") != "الرجاء اختيار تصنيف." {
		t.Errorf("err flash = %q", q.Get("err"))
	}

	form.Set("category", "طعام")
	form.Set("amount", "0")
	_, q = flashOf(t, env.do(t, http.MethodPost, "/transactions", form.Encode()))
	if q.Get("err") == "" {
		t.Error("zero amount accepted")
	}

	txs, _ = env.svc.ListTransactions(context.Background())
	if len(txs) != 1 {
		t.Errorf("failed posts changed the ledger: %d rows", len(txs))
	}
}

func TestFlashIsRendered(t *testing.T) {
	env := newTestEnv(t)
	body := env.do(t, http.MethodGet, "/?err="+url.QueryEscape("<b>x</b>"), "").Body.String()
	if !strings.Contains(body, "&lt;b&gt;x&lt;/b&gt;") {
		t.Error("flash message not escaped")
	}
}

func TestEditUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	id := env.seed(t, core.Expense, 5000, "فواتير", "2024-03-05")
	idStr := jsonID(id)

	rr := env.do(t, http.MethodGet, "/transactions?edit="+idStr, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "تعديل المعاملة") || !strings.Contains(body, `value="50.00"`) {
		t.Fatal("edit form not rendered")
	}

	form := url.Values{"type": {"income"}, "amount": {"75"}, "category": {"بيع"}, "source": {"سوق"}, "date": {"2024-04-01"}}
	path, q := flashOf(t, env.do(t, http.MethodPost, "/transactions/"+idStr, form.Encode()))
	if path != "/transactions" || q.Get("ok") == "" {
		t.Fatalf("redirect = %s %v", path, q)
	}
	tx, err := env.svc.GetTransaction(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Type != core.Income || tx.Month != "2024-04" || tx.Source != "سوق" {
		t.Errorf("update not applied: %+v", tx)
	}

	_, q = flashOf(t, env.do(t, http.MethodPost, "/transactions/999", form.Encode()))
	if q.Get("err") != "العنصر المطلوب غير موجود." {
		t.Errorf("update of missing id: %v", q)
	}

	path, q = flashOf(t, env.do(t, http.MethodPost, "/transactions/"+idStr+"/delete", "back=%2F"))
	if path != "/" || q.Get("ok") == "" {
		t.Fatalf("redirect = %s %v", path, q)
	}
	_, err = env.svc.GetTransaction(context.Background(), id)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("transaction still present: %v", err)
	}

	_, q = flashOf(t, env.do(t, http.MethodPost, "/transactions/"+idStr+"/delete", ""))
	if q.Get("err") == "" {
		t.Error("second delete reported success")
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t)

	body := env.do(t, http.MethodGet, "/categories", "").Body.String()
	for _, want := range []string{"تصنيفات المصروفات", "تصنيفات الدخل", "إيجار", "راتب"} {
		if !strings.Contains(body, want) {
			t.Errorf("categories page missing %q", want)
		}
	}

	add := url.Values{"type": {"expense"}, "name": {"  سفر "}}.Encode()
	_, q := flashOf(t, env.do(t, http.MethodPost, "/categories", add))
	if q.Get("ok") == "" {
		t.Fatalf("add failed: %v", q)
	}

	_, q = flashOf(t, env.do(t, http.MethodPost, "/categories", add))
	if q.Get("err") != "هذا التصنيف موجود بالفعل." {
		t.Errorf("duplicate flash = %q", q.Get("err"))
	}

	_, q = flashOf(t, env.do(t, http.MethodPost, "/categories", url.Values{"type": {"expense"}, "name": {" "}}.Encode()))
	if q.Get("err") != "اسم التصنيف لا يمكن أن يكون فارغاً." {
		t.Errorf("empty name flash = %q", q.Get("err"))
	}

	all, _ := env.svc.ListAllCategories(context.Background())
	var id int64
	for _, c := range all {
		if c.Name == "سفر" {
			id = c.ID
		}
	}
	if id == 0 {
		t.Fatal("added category not listed")
	}
	_, q = flashOf(t, env.do(t, http.MethodPost, "/categories/"+jsonID(id)+"/delete", ""))
	if q.Get("ok") == "" {
		t.Errorf("delete failed: %v", q)
	}
	_, q = flashOf(t, env.do(t, http.MethodPost, "/categories/"+jsonID(id)+"/delete", ""))
	if q.Get("err") == "" {
		t.Error("deleting a missing category reported success")
	}
}

func TestCategoryOptions(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/ui/categories?type=income&selected=بيع", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, `<option value="">اختر التصنيف</option>`) {
		t.Errorf("missing placeholder option: %q", body)
	}
	if !strings.Contains(body, `<option value="بيع" selected>`) || strings.Contains(body, "إيجار") {
		t.Errorf("unexpected options: %q", body)
	}

	if rr := env.do(t, http.MethodGet, "/ui/categories?type=other", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad type status=%d", rr.Code)
	}
}

func TestReports(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, core.Income, 100000, "راتب", "2024-01-05")
	env.seed(t, core.Expense, 40000, "إيجار", "2024-01-06")
	env.seed(t, core.Expense, 10000, "طعام", "2024-03-06")

	body := env.do(t, http.MethodGet, "/reports", "").Body.String()
	if strings.Contains(body, "الصافي") {
		t.Error("report shown before the selector was submitted")
	}

	body = env.do(t, http.MethodGet, "/reports?kind=monthly&year=2024&month=1", "").Body.String()
	for _, want := range []string{"تقرير شهر يناير 2024", "1,000.00 ريال", "400.00 ريال", "600.00 ريال"} {
		if !strings.Contains(body, want) {
			t.Errorf("monthly report missing %q", want)
		}
	}

	body = env.do(t, http.MethodGet, "/reports?kind=yearly&year=2024", "").Body.String()
	jan := strings.Index(body, "يناير 2024")
	mar := strings.Index(body, "مارس 2024")
	if jan < 0 || mar < 0 || jan > mar {
		t.Errorf("yearly rows missing or out of order (jan=%d, mar=%d)", jan, mar)
	}
	if strings.Contains(body, "فبراير 2024") {
		t.Error("month without transactions listed")
	}
	if !strings.Contains(body, "-100.00 ريال") {
		t.Error("negative net not rendered")
	}

	body = env.do(t, http.MethodGet, "/reports?kind=monthly&year=2024&month=13", "").Body.String()
	if !strings.Contains(body, "الشهر أو السنة غير صالحة.") {
		t.Error("invalid month not reported")
	}
}

func TestExportForm(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, core.Expense, 1000, "طعام", "2024-03-01")

	_, q := flashOf(t, env.do(t, http.MethodPost, "/export", url.Values{"target": {"file"}, "name": {"backup"}}.Encode()))
	if !strings.Contains(q.Get("ok"), filepath.Join(env.dir, "backup.json")) {
		t.Fatalf("export flash = %v", q)
	}
	data, err := os.ReadFile(filepath.Join(env.dir, "backup.json"))
	if err != nil {
		t.Fatal(err)
	}
	var txs []core.Transaction
	if err := json.Unmarshal(data, &txs); err != nil || len(txs) != 1 {
		t.Fatalf("exported file: %v, %d rows", err, len(txs))
	}

	_, q = flashOf(t, env.do(t, http.MethodPost, "/export", url.Values{"target": {"file"}, "name": {""}}.Encode()))
	if q.Get("ok") != "تم إلغاء التصدير." {
		t.Errorf("cancel flash = %v", q)
	}

	_, q = flashOf(t, env.do(t, http.MethodPost, "/export", url.Values{"target": {"sheets"}}.Encode()))
	if q.Get("err") == "" {
		t.Error("sheets export without a mirror reported success")
	}
}

func TestExportDownload(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/export/download", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="MoneyManager_2024-03-15.json"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty ledger body = %q", rr.Body.String())
	}
}

func TestCrossOriginPostRejected(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader("type=expense&name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "http://evil.example")
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader("type=expense&name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "http://example.com")
	rr = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("same-origin status=%d", rr.Code)
	}
}

func TestMethodRouting(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, http.MethodGet, "/export", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /export status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown page status=%d", rr.Code)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
