package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"moneymanager/internal/core"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00 ريال"},
		{5, "0.05 ريال"},
		{125050, "1,250.50 ريال"},
		{100000000, "1,000,000.00 ريال"},
		{-10000, "-100.00 ريال"},
		{-123456, "-1,234.56 ريال"},
	}
	for _, tt := range tests {
		if got := formatMoney(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("formatMoney(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestMonthNames(t *testing.T) {
	if monthName(1) != "يناير" || monthName(12) != "ديسمبر" {
		t.Error("unexpected month names")
	}
	if monthName(0) != "" || monthName(13) != "" {
		t.Error("out of range month should be empty")
	}
	if got := monthLabel("2024-05"); got != "مايو 2024" {
		t.Errorf("monthLabel = %q", got)
	}
	for _, raw := range []string{"2024-13", "2024", "2024-ab"} {
		if got := monthLabel(raw); got != raw {
			t.Errorf("monthLabel(%q) = %q, want it unchanged", raw, got)
		}
	}
}

func TestTypeLabel(t *testing.T) {
	if typeLabel(core.Income) != "دخل" || typeLabel(core.Expense) != "مصروف" {
		t.Error("unexpected type labels")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	if userMessage(nil) != "" {
		t.Error("nil error has a message")
	}
	dup := fmt.Errorf("add category: %w", core.ErrDuplicateCategory)
	if userMessage(dup) != "هذا التصنيف موجود بالفعل." {
		t.Errorf("duplicate message = %q", userMessage(dup))
	}
	if got := userMessage(errors.New("database is locked")); got != "حدث خطأ، حاول مرة أخرى." {
		t.Errorf("generic message = %q", got)
	}
}

func TestDistribution(t *testing.T) {
	bars := distribution([]core.CategoryTotal{
		{Category: "إيجار", Total: core.Money{Cents: 100000}},
		{Category: "طعام", Total: core.Money{Cents: 25000}},
		{Category: "ترفيه", Total: core.Money{Cents: 100}},
	})
	want := []int{100, 25, 2}
	for i, b := range bars {
		if b.Width != want[i] {
			t.Errorf("%s width = %d, want %d", b.Name, b.Width, want[i])
		}
	}
	if len(distribution(nil)) != 0 {
		t.Error("no totals should give no bars")
	}
}

func TestWithCurrent(t *testing.T) {
	cats := []string{"طعام", "فواتير"}
	if got := withCurrent(cats, "طعام"); len(got) != 2 {
		t.Errorf("existing category duplicated: %v", got)
	}
	if got := withCurrent(cats, "قديم"); len(got) != 3 || got[0] != "قديم" {
		t.Errorf("deleted category not kept: %v", got)
	}
}

func TestBackPath(t *testing.T) {
	tests := []struct {
		back, want string
	}{
		{"", "/transactions"},
		{"/", "/"},
		{"//evil.example", "/transactions"},
		{"https://evil.example", "/transactions"},
		{"/?x=1", "/transactions"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/?back="+tt.back, nil)
		if got := backPath(r, "/transactions"); got != tt.want {
			t.Errorf("backPath(%q) = %q, want %q", tt.back, got, tt.want)
		}
	}
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "127.0.0.1:5000"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := extractClientIP(r); got != "203.0.113.7" {
		t.Errorf("trusted proxy: got %q", got)
	}

	r.RemoteAddr = "198.51.100.2:5000"
	if got := extractClientIP(r); got != "198.51.100.2" {
		t.Errorf("untrusted peer: got %q", got)
	}
}
