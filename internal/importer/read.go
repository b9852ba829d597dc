package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyBuffer = errors.New("empty file")
	ErrUnreadable  = errors.New("unreadable file format")
	ErrLegacyExcel = errors.New("legacy .xls files are not supported, save as .xlsx or .csv")
	ErrNoSheets    = errors.New("workbook has no sheets")
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// ReadBuffer decodes a spreadsheet buffer into a matrix. XLSX workbooks are
// recognised by content (first sheet is read); anything else is treated as
// CSV with ',' or ';' as separator.
func ReadBuffer(data []byte, filename string) (Matrix, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyBuffer
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return readXLSX(data)
	case bytes.HasPrefix(data, oleMagic) || ext == ".xls":
		return nil, ErrLegacyExcel
	case ext == ".xlsx":
		return nil, fmt.Errorf("%w: %s is not a valid workbook", ErrUnreadable, filename)
	}
	return readCSV(data)
}

func readXLSX(data []byte) (Matrix, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	// Raw values keep number formats such as #,##0 out of the amounts.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrUnreadable, sheets[0], err)
	}
	return MatrixOfStrings(rows), nil
}

func readCSV(data []byte) (Matrix, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, ErrUnreadable
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return MatrixOfStrings(rows), nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, as exported by spreadsheet tools in comma-decimal locales.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
