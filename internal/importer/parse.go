// Package importer turns spreadsheet buffers into candidate transactions and
// flags the ones already present in the ledger.
//
// Expected sheet shape: one header row holding month names (Spanish or
// English, full or three letters) within the first HeaderSearchRows rows, a
// category column found by name (CategoryHeaders) or column 0, and one data
// row per category. Rows containing INGRESO switch the following rows to
// income, rows containing GASTO or EGRESO switch them to expense. Sheets
// without a month header but with at least 13 columns are read as row 0
// header, column 0 category and columns 1-12 January to December.
package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"cashflow/internal/core"
	"cashflow/internal/fingerprint"
)

// HeaderSearchRows bounds the search for the month header row.
const HeaderSearchRows = 20

// ErrNoMonthHeaders is reported when neither a month header nor the standard
// layout can be found.
var ErrNoMonthHeaders = errors.New("no month headers found")

// CategoryHeaders are the header names that identify the category column.
var CategoryHeaders = []string{
	"categoria", "categoría", "concepto", "category",
	"description", "descripcion", "descripción", "item",
}

var monthNames = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10,
	"noviembre": 11, "diciembre": 12,
	"ene": 1, "abr": 4, "ago": 8, "dic": 12,
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11,
	"december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6, "jul": 7, "aug": 8,
	"sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

var yearPattern = regexp.MustCompile(`(?:^|\D)(20\d{2})(?:\D|$)`)

// Result is the outcome of parsing one buffer. Parsing never fails past this
// value: problems are listed in Errors with Success false.
type Result struct {
	Success  bool               `json:"success"`
	Rows     []core.ImportedRow `json:"rows"`
	Stats    core.ImportStats   `json:"stats"`
	Errors   []string           `json:"errors,omitempty"`
	Year     int                `json:"year"`
	Fallback bool               `json:"fallbackLayout"`
}

func failure(err error) Result {
	return Result{Success: false, Rows: []core.ImportedRow{}, Errors: []string{err.Error()}}
}

type layout struct {
	headerRow   int
	categoryCol int
	months      map[int]int // column -> month 1-12
	fallback    bool
	scanned     int // rows searched for the header
}

// ParseBuffer reads and parses a spreadsheet buffer.
func ParseBuffer(data []byte, filename string, now time.Time) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failure(fmt.Errorf("%w: %v", ErrUnreadable, r))
		}
	}()
	m, err := ReadBuffer(data, filename)
	if err != nil {
		return failure(err)
	}
	return ParseMatrix(m, now)
}

// ParseMatrix extracts one row per non-empty (category, month) cell. The year
// comes from a 20xx value in the rows searched for the header (up to the
// header row, or the whole search window for the fallback layout), else from
// now.
func ParseMatrix(m Matrix, now time.Time) Result {
	if len(m) == 0 {
		return failure(ErrEmptyBuffer)
	}
	lay, ok := findLayout(m)
	if !ok {
		return failure(fmt.Errorf("%w in the first %d rows", ErrNoMonthHeaders, HeaderSearchRows))
	}
	year := detectYear(m[:lay.scanned], now.Year())

	rows := make([]core.ImportedRow, 0)
	current := core.Expense
	for r := lay.headerRow + 1; r < len(m); r++ {
		row := m[r]
		first := safeGet(row, 0).String()
		name := safeGet(row, lay.categoryCol).String()

		if isTotal(name) || isTotal(first) {
			continue
		}
		if t, ok := sectionOf(name, first); ok {
			current = t
			continue
		}
		if name == "" {
			continue
		}
		for col := range row {
			month, ok := lay.months[col]
			if !ok {
				continue
			}
			amount, ok := cellAmount(row[col], current)
			if !ok {
				continue
			}
			ir := core.ImportedRow{
				Date:         core.NewDate(year, month, 1),
				Amount:       amount,
				CategoryName: name,
				Type:         current,
				Status:       core.Real,
				Origin:       core.Business,
			}
			ir.Fingerprint = fingerprint.OfRow(ir)
			rows = append(rows, ir)
		}
	}
	return Result{
		Success:  true,
		Rows:     rows,
		Stats:    Summarize(rows, nil),
		Year:     year,
		Fallback: lay.fallback,
	}
}

func findLayout(m Matrix) (layout, bool) {
	limit := HeaderSearchRows
	if len(m) < limit {
		limit = len(m)
	}
	for r := 0; r < limit; r++ {
		months := map[int]int{}
		for c, cell := range m[r] {
			if cell.Kind != Text {
				continue
			}
			if month, ok := monthOf(cell.Str); ok {
				months[c] = month
			}
		}
		if len(months) < 2 {
			continue
		}
		cat := categoryColumn(m[r])
		delete(months, cat)
		return layout{headerRow: r, categoryCol: cat, months: months, scanned: r + 1}, true
	}

	width := 0
	for _, row := range m {
		if len(row) > width {
			width = len(row)
		}
	}
	if width < 13 {
		return layout{}, false
	}
	months := make(map[int]int, 12)
	for c := 1; c <= 12; c++ {
		months[c] = c
	}
	return layout{headerRow: 0, categoryCol: 0, months: months, fallback: true, scanned: limit}, true
}

// monthOf matches a header like "Enero", "feb", "Sept." or "Jan 2025".
func monthOf(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	word, rest := s, ""
	if end >= 0 {
		word, rest = s[:end], s[end:]
	}
	if strings.IndexFunc(rest, unicode.IsLetter) >= 0 {
		return 0, false
	}
	m, ok := monthNames[word]
	return m, ok
}

func categoryColumn(header []Cell) int {
	for c, cell := range header {
		name := strings.ToLower(cell.String())
		for _, syn := range CategoryHeaders {
			if name == syn {
				return c
			}
		}
	}
	return 0
}

func detectYear(window Matrix, fallback int) int {
	for _, row := range window {
		for _, cell := range row {
			switch cell.Kind {
			case Text:
				if m := yearPattern.FindStringSubmatch(cell.Str); m != nil {
					if y, err := strconv.Atoi(m[1]); err == nil {
						return y
					}
				}
			case Number:
				if cell.Num.IsInteger() {
					if y := cell.Num.IntPart(); y >= 2000 && y <= 2099 {
						return int(y)
					}
				}
			}
		}
	}
	return fallback
}

func isTotal(s string) bool {
	return strings.HasPrefix(strings.ToUpper(s), "TOTAL")
}

func sectionOf(cells ...string) (core.TransactionType, bool) {
	for _, s := range cells {
		switch {
		case strings.Contains(s, "INGRESO"):
			return core.Income, true
		case strings.Contains(s, "GASTO"), strings.Contains(s, "EGRESO"):
			return core.Expense, true
		}
	}
	return "", false
}

// cellAmount resolves a month cell into a positive amount. Zero and
// unparsable cells are skipped, income must be positive and negative
// expenses are taken as their magnitude.
func cellAmount(c Cell, t core.TransactionType) (core.Money, bool) {
	d, ok := c.Decimal()
	if !ok || d.IsZero() {
		return core.Money{}, false
	}
	if t == core.Income && !d.IsPositive() {
		return core.Money{}, false
	}
	money := core.MoneyFromDecimal(d.Abs())
	if money.Cents == 0 {
		return core.Money{}, false
	}
	return money, true
}
