package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"moneymanager/internal/core"
	"moneymanager/internal/export"
	"moneymanager/internal/shell"
)

// CurrencyLabel follows every amount shown in the UI.
const CurrencyLabel = "ريال"

var arabicMonths = [12]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

// monthName returns the Arabic name of month 1..12, or "" outside that range.
func monthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return arabicMonths[month-1]
}

// monthLabel renders a YYYY-MM key as "<month name> <year>".
func monthLabel(key string) string {
	if len(key) != 7 {
		return key
	}
	var m int
	for _, c := range key[5:] {
		if c < '0' || c > '9' {
			return key
		}
		m = m*10 + int(c-'0')
	}
	if name := monthName(m); name != "" {
		return name + " " + key[:4]
	}
	return key
}

// formatMoney renders an amount with two decimals, thousands separators
// and the currency label, e.g. "1,234.50 ريال".
func formatMoney(m core.Money) string {
	s := m.Decimal().StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out + " " + CurrencyLabel
}

func typeLabel(t core.TxType) string {
	switch t {
	case core.Income:
		return "دخل"
	case core.Expense:
		return "مصروف"
	}
	return string(t)
}

// sanitizeInput removes control characters except tab and newlines, and trims.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// userMessage is the Arabic text shown for err. Unknown failures get a
// generic message; details stay in the log.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrDuplicateCategory):
		return core.ErrDuplicateCategory.Error()
	case errors.Is(err, core.ErrEmptyCategory):
		return "الرجاء اختيار تصنيف."
	case errors.Is(err, core.ErrEmptyName):
		return "اسم التصنيف لا يمكن أن يكون فارغاً."
	case errors.Is(err, core.ErrNameTooLong):
		return "اسم التصنيف طويل جداً."
	case errors.Is(err, core.ErrInvalidAmount):
		return "المبلغ غير صالح، يجب أن يكون رقماً أكبر من صفر."
	case errors.Is(err, core.ErrInvalidDate):
		return "التاريخ غير صالح."
	case errors.Is(err, core.ErrInvalidType):
		return "نوع المعاملة غير صالح."
	case errors.Is(err, core.ErrInvalidMonth):
		return "الشهر أو السنة غير صالحة."
	case errors.Is(err, core.ErrNotFound):
		return "العنصر المطلوب غير موجود."
	case errors.Is(err, export.ErrSheetsDisabled):
		return "التصدير إلى جداول Google غير مُعد."
	case errors.Is(err, shell.ErrBadArguments), errors.Is(err, export.ErrUnknownTarget):
		return "طلب غير صالح."
	default:
		return "حدث خطأ، حاول مرة أخرى."
	}
}

// redirectWithFlash sends the browser back to path with a one-shot message
// in the query string.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, path, key, msg string) {
	target := path
	if msg != "" {
		target += "?" + url.Values{key: {msg}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func redirectOK(w http.ResponseWriter, r *http.Request, path, msg string) {
	redirectWithFlash(w, r, path, "ok", msg)
}

func redirectErr(w http.ResponseWriter, r *http.Request, path string, err error) {
	redirectWithFlash(w, r, path, "err", userMessage(err))
}
