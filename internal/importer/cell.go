package importer

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags the content of a spreadsheet cell.
type Kind int

const (
	Empty Kind = iota
	Number
	Text
)

// Cell is one spreadsheet value after the loosely typed source value has been
// resolved into a tagged variant.
type Cell struct {
	Kind Kind
	Num  decimal.Decimal
	Str  string
}

// Matrix is a sheet as rows of cells. Rows may have different lengths.
type Matrix [][]Cell

func NumberCell(d decimal.Decimal) Cell { return Cell{Kind: Number, Num: d} }

// TextCell returns an Empty cell for blank strings.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: Text, Str: s}
}

// CellOf converts a value as returned by the Sheets API, encoding/csv or
// excelize into a Cell.
func CellOf(v interface{}) Cell {
	switch x := v.(type) {
	case nil:
		return Cell{}
	case Cell:
		return x
	case string:
		return TextCell(x)
	case float64:
		return NumberCell(decimal.NewFromFloat(x))
	case float32:
		return NumberCell(decimal.NewFromFloat32(x))
	case int:
		return NumberCell(decimal.NewFromInt(int64(x)))
	case int64:
		return NumberCell(decimal.NewFromInt(x))
	case decimal.Decimal:
		return NumberCell(x)
	case bool:
		return TextCell(strconv.FormatBool(x))
	default:
		return Cell{}
	}
}

// MatrixOf converts a raw values matrix.
func MatrixOf(values [][]interface{}) Matrix {
	m := make(Matrix, len(values))
	for i, row := range values {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = CellOf(v)
		}
		m[i] = cells
	}
	return m
}

// MatrixOfStrings converts string rows, as read from CSV or XLSX.
func MatrixOfStrings(rows [][]string) Matrix {
	m := make(Matrix, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, s := range row {
			cells[j] = TextCell(s)
		}
		m[i] = cells
	}
	return m
}

// String renders the cell as trimmed text.
func (c Cell) String() string {
	switch c.Kind {
	case Number:
		return c.Num.String()
	case Text:
		return strings.TrimSpace(c.Str)
	default:
		return ""
	}
}

// Decimal resolves the cell to a number. Text is stripped of everything
// except digits, '.' and '-' before parsing, so "1,500" and "$1,500" read as
// 1500.
func (c Cell) Decimal() (decimal.Decimal, bool) {
	switch c.Kind {
	case Number:
		return c.Num, true
	case Text:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, c.Str)
		if cleaned == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func safeGet(row []Cell, idx int) Cell {
	if idx < 0 || idx >= len(row) {
		return Cell{}
	}
	return row[idx]
}
