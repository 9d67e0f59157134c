// Package parsers reads marketplace finance exports (.xlsx or .csv) into
// typed rows. Sellers download these files from the marketplace panel, so
// the readers tolerate decorative preamble rows, blank separator rows and
// the Turkish/English header variants the panel produces.
package parsers

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	ferrors "marketplace-finance-service/pkg/errors"
)

// maxEmptyRows is how many consecutive blank rows to tolerate before
// treating the rest of the sheet as trailing padding.
const maxEmptyRows = 10

// headerScanRows is how many leading rows are searched for the header row
const headerScanRows = 10

// RawRow is one data row keyed by normalized header name
type RawRow struct {
	Line  int
	Cells map[string]string
}

// Get returns the cell under the first alias that is present and non-empty
func (r RawRow) Get(aliases ...string) string {
	for _, alias := range aliases {
		if v, ok := r.Cells[normalizeHeader(alias)]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// IsEmpty reports whether every cell in the row is blank
func (r RawRow) IsEmpty() bool {
	for _, v := range r.Cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Sheet is a parsed spreadsheet: the detected header row plus all data rows
type Sheet struct {
	File    string
	Headers []string
	Rows    []RawRow
}

// OpenSheet reads the first worksheet of an .xlsx file, or a .csv/.txt
// file, into a Sheet. headerHints are column names expected in the header
// row; the first of the leading rows containing any hint becomes the header.
func OpenSheet(path string, headerHints []string) (*Sheet, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readExcelRows(path)
	case ".csv", ".txt":
		rows, err = readCSVRows(path)
	default:
		return nil, ferrors.FileError(ferrors.CodeFileUnsupported, path, nil)
	}
	if err != nil {
		return nil, err
	}

	headerIdx := findHeaderRow(rows, headerHints)
	if headerIdx < 0 {
		return nil, ferrors.HeaderError(filepath.Base(path), headerHints)
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}

	sheet := &Sheet{File: filepath.Base(path), Headers: headers}

	empty := 0
	for i := headerIdx + 1; i < len(rows); i++ {
		row := toRawRow(headers, rows[i], i+1)
		if row.IsEmpty() {
			empty++
			if empty >= maxEmptyRows {
				break
			}
			continue
		}
		empty = 0
		sheet.Rows = append(sheet.Rows, row)
	}

	return sheet, nil
}

func readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.FileError(ferrors.CodeFileNotFound, path, err)
		}
		return nil, ferrors.FileError(ferrors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ferrors.FileError(ferrors.CodeFileCorrupted, path, nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, ferrors.FileError(ferrors.CodeFileCorrupted, path, err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.FileError(ferrors.CodeFileNotFound, path, err)
		}
		return nil, ferrors.FileError(ferrors.CodeFilePermission, path, err)
	}

	text := strings.TrimPrefix(string(data), "\uFEFF")

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ferrors.FileError(ferrors.CodeFileCorrupted, path, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// sniffDelimiter picks ';' over ',' when the first line carries more
// semicolons. Turkish Excel saves CSVs semicolon-separated.
func sniffDelimiter(text string) rune {
	line := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		line = text[:idx]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

func findHeaderRow(rows [][]string, hints []string) int {
	normalized := make(map[string]bool, len(hints))
	for _, h := range hints {
		normalized[normalizeHeader(h)] = true
	}

	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			if normalized[normalizeHeader(cell)] {
				return i
			}
		}
	}
	return -1
}

func toRawRow(headers []string, cells []string, line int) RawRow {
	row := RawRow{Line: line, Cells: make(map[string]string, len(headers))}
	for i, header := range headers {
		if header == "" {
			continue
		}
		value := ""
		if i < len(cells) {
			value = cells[i]
		}
		row.Cells[normalizeHeader(header)] = value
	}
	return row
}

// normalizeHeader canonicalizes a header for comparison. Turkish casing
// rules keep "İŞLEM TİPİ" and "İşlem Tipi" identical after folding.
func normalizeHeader(h string) string {
	return strings.ToLowerSpecial(unicode.TurkishCase, strings.TrimSpace(h))
}
