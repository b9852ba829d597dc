package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Real      Status = "real"
	Projected Status = "projected"

	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"

	Business Origin = "business"
	Personal Origin = "personal"

	OriginAll      OriginFilter = "all"
	OriginBusiness OriginFilter = "business"
	OriginPersonal OriginFilter = "personal"

	LevelEmpresa  Level = "empresa"
	LevelPersonal Level = "personal"

	SublevelCasa    Sublevel = "casa"
	SublevelViajes  Sublevel = "viajes"
	SublevelDeporte Sublevel = "deporte"
	SublevelSalud   Sublevel = "salud"
	SublevelOcio    Sublevel = "ocio"

	FocusAll      FocusMode = "all"
	FocusCompany  FocusMode = "company"
	FocusPersonal FocusMode = "personal"
)

// Uncategorized is the group key for transactions with neither a resolvable
// category nor a description.
const Uncategorized = "Sin categoría"

type (
	TransactionType string
	Status          string
	PaymentStatus   string
	Origin          string
	OriginFilter    string
	Level           string
	Sublevel        string
	FocusMode       string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Installment links one generated transaction to the multi-month
	// obligation it belongs to.
	Installment struct {
		Total      int    `json:"total"`
		Index      int    `json:"index"` // 1-based
		Amount     Money  `json:"amount"` // this installment's share
		EqualSplit bool   `json:"equalSplit"`
		ParentID   string `json:"parentId,omitempty"`
	}

	Transaction struct {
		ID            string          `json:"id"`
		Date          Date            `json:"date"`
		Amount        Money           `json:"amount"`
		Type          TransactionType `json:"type"`
		Status        Status          `json:"status"`
		PaymentStatus PaymentStatus   `json:"paymentStatus,omitempty"`
		Origin        Origin          `json:"origin"`
		CategoryID    string          `json:"categoryId,omitempty"`
		Description   string          `json:"description,omitempty"`
		Installment   *Installment    `json:"installment,omitempty"`
	}

	Category struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Type     TransactionType `json:"type"`
		Level    Level           `json:"level"`
		Sublevel Sublevel        `json:"sublevel,omitempty"`
		Color    string          `json:"color,omitempty"`
		Fixed    bool            `json:"fixed"`
	}
)

var (
	ErrInvalidDate          = errors.New("date cannot be zero")
	ErrInvalidDay           = errors.New("invalid day")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrInvalidOrigin        = errors.New("invalid origin")
	ErrInvalidLevel         = errors.New("invalid level")
	ErrInvalidSublevel      = errors.New("invalid sublevel")
	ErrEmptyName            = errors.New("empty category name")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrNotFound             = errors.New("not found")
)

func (t TransactionType) Valid() bool { return t == Income || t == Expense }
func (s Status) Valid() bool          { return s == Real || s == Projected }
func (o Origin) Valid() bool          { return o == Business || o == Personal }
func (l Level) Valid() bool           { return l == LevelEmpresa || l == LevelPersonal }

func (p PaymentStatus) Valid() bool {
	return p == "" || p == PaymentPending || p == PaymentPaid
}

func (f OriginFilter) Valid() bool {
	return f == OriginAll || f == OriginBusiness || f == OriginPersonal
}

// Matches reports whether a transaction origin passes the filter. An empty
// filter behaves like OriginAll.
func (f OriginFilter) Matches(o Origin) bool {
	switch f {
	case "", OriginAll:
		return true
	default:
		return string(f) == string(o)
	}
}

func (f FocusMode) Valid() bool {
	return f == FocusAll || f == FocusCompany || f == FocusPersonal
}

func (s Sublevel) Valid() bool {
	switch s {
	case SublevelCasa, SublevelViajes, SublevelDeporte, SublevelSalud, SublevelOcio:
		return true
	}
	return false
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf keeps the calendar day of t as seen in t's own location and drops
// the time of day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Longer ISO timestamps are accepted
// and truncated to their date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == 'T' {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time.Format(time.DateOnly)
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
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

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if !t.PaymentStatus.Valid() {
		return ErrInvalidPaymentStatus
	}
	if !t.Origin.Valid() {
		return ErrInvalidOrigin
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

// Normalize drops the sublevel of company categories, where it carries no
// meaning.
func (c Category) Normalize() Category {
	c.Name = strings.TrimSpace(c.Name)
	if c.Level != LevelPersonal {
		c.Sublevel = ""
	}
	return c
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if !c.Level.Valid() {
		return ErrInvalidLevel
	}
	if c.Level == LevelPersonal && c.Sublevel != "" && !c.Sublevel.Valid() {
		return ErrInvalidSublevel
	}
	return nil
}
