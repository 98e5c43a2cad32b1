package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// dateLayout is the ISO 8601 calendar date used on the wire and in storage.
const dateLayout = "2006-01-02"

type (
	// TxType tells whether money came in or went out.
	TxType string

	// Date is a calendar day (UTC midnight).
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          int64  `json:"id"`
		Type        TxType `json:"type"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Source      string `json:"source"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
		Month       string `json:"month"`
	}

	// TransactionInput holds every mutable field of a transaction. Updates
	// overwrite all of them; there is no partial patch.
	TransactionInput struct {
		Type        TxType `json:"type"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Source      string `json:"source"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
	}

	Category struct {
		ID   int64  `json:"id"`
		Type TxType `json:"type"`
		Name string `json:"category_name"`
	}
)

// ParseTxType accepts "income" or "expense", case-insensitively.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", invalid(ErrInvalidType)
	}
	return t, nil
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (t TxType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range days such as
// 2024-02-30 are rejected rather than normalized.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, invalid(ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return invalid(ErrInvalidDate)
	}
	if y := d.Year(); y < 1 || y > 9999 {
		return invalid(ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MonthKey returns the YYYY-MM prefix of the date.
func (d Date) MonthKey() string {
	s := d.String()
	if len(s) < 7 {
		return ""
	}
	return s[:7]
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthKey formats a year and month as the YYYY-MM grouping key.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParseMonthKey checks that s is a YYYY-MM key and returns it trimmed.
func ParseMonthKey(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 {
		return "", invalid(ErrInvalidMonth)
	}
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", invalid(ErrInvalidMonth)
	}
	return s, nil
}

// ValidateYearMonth rejects years outside 1..9999 and months outside 1..12.
func ValidateYearMonth(year, month int) error {
	if year < 1 || year > 9999 || month < 1 || month > 12 {
		return invalid(ErrInvalidMonth)
	}
	return nil
}

// Normalize trims free-text fields and lowercases the type.
func (in TransactionInput) Normalize() TransactionInput {
	in.Type = TxType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.Category = strings.TrimSpace(in.Category)
	in.Source = strings.TrimSpace(in.Source)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return invalid(ErrInvalidType)
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.Category == "" {
		return invalid(ErrEmptyCategory)
	}
	return in.Date.Validate()
}

// Month is the derived grouping key stored next to the date.
func (in TransactionInput) Month() string {
	return in.Date.MonthKey()
}

// Apply builds the stored record for id from the input, deriving the month key.
func (in TransactionInput) Apply(id int64) Transaction {
	return Transaction{
		ID:          id,
		Type:        in.Type,
		Amount:      in.Amount,
		Category:    in.Category,
		Source:      in.Source,
		Description: in.Description,
		Date:        in.Date,
		Month:       in.Month(),
	}
}

// Input returns the mutable fields of t.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{
		Type:        t.Type,
		Amount:      t.Amount,
		Category:    t.Category,
		Source:      t.Source,
		Description: t.Description,
		Date:        t.Date,
	}
}

// NormalizeCategoryName trims the name and rejects empty ones.
func NormalizeCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid(ErrEmptyName)
	}
	if len([]rune(name)) > 100 {
		return "", invalid(ErrNameTooLong)
	}
	return name, nil
}
