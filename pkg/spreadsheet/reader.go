// Package spreadsheet reads tabular data from xlsx workbooks.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheet is returned for workbooks without worksheets.
var ErrNoSheet = errors.New("spreadsheet: workbook has no sheets")

// Row is one data row. Number is 1-based and excludes the header row.
type Row struct {
	Number int
	Cells  []string
}

// Cell returns the trimmed value at column idx or an empty string.
func (r Row) Cell(idx int) string {
	if idx < 0 || idx >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[idx])
}

// Blank reports whether every cell is empty after trimming.
func (r Row) Blank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Sheet is the first worksheet split into header and data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   []Row
}

// ReadFirstSheet parses an xlsx stream and returns its first worksheet. Fully
// blank rows are dropped but keep their position in the numbering.
func ReadFirstSheet(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	sheet := &Sheet{Name: sheets[0]}
	if len(raw) == 0 {
		return sheet, nil
	}

	sheet.Header = make([]string, len(raw[0]))
	for i, h := range raw[0] {
		sheet.Header[i] = strings.TrimSpace(h)
	}
	for i, cells := range raw[1:] {
		row := Row{Number: i + 1, Cells: cells}
		if row.Blank() {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}
