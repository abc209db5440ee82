// Package sheet writes extracted rows to single-sheet xlsx workbooks and reads them back.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/specsheet/internal/models"
	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the worksheet name used when none is configured.
const DefaultSheetName = "Spec Sheets"

// DefaultFileName is the download name used when the user gives none.
const DefaultFileName = "spec_sheets.xlsx"

const (
	maxSheetName = 31
	columnWidth  = 18
)

// ErrNoHeader is returned by Read when the first worksheet is empty.
var ErrNoHeader = errors.New("sheet has no header row")

// Options controls workbook layout.
type Options struct {
	SheetName string
}

// Write renders a header row of columns followed by one row per entry of rows,
// each cell the row's value for that column. Every cell is written as a string.
func Write(columns []string, rows []models.Row, opts Options) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := SanitizeSheetName(opts.SheetName)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if len(columns) > 0 {
		if err := styleHeader(f, name, len(columns)); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		cells := make([]interface{}, len(columns))
		for j, c := range columns {
			cells[j] = row.Get(c)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(name, cell, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	// Trailing rows of empty strings hold no cells; the dimension keeps them countable.
	if len(columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(columns), len(rows)+1)
		if err != nil {
			return nil, fmt.Errorf("sheet dimension: %w", err)
		}
		if err := f.SetSheetDimension(name, "A1:"+last); err != nil {
			return nil, fmt.Errorf("sheet dimension: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

// WriteFile writes the workbook to path.
func WriteFile(path string, columns []string, rows []models.Row, opts Options) error {
	buf, err := Write(columns, rows, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, n int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(n, 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, columnWidth); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	return nil
}

// Read parses the first worksheet: the first row is the header, every following row
// maps header cells to values. Short rows are padded with empty strings. Rows with no
// values at all are kept up to the last row of the sheet's dimension.
func Read(r io.Reader) (columns []string, rows []models.Row, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrNoHeader
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 || len(all[0]) == 0 {
		return nil, nil, ErrNoHeader
	}
	if n := dimensionRows(f, sheets[0]); n > len(all) {
		all = append(all, make([][]string, n-len(all))...)
	}
	columns = all[0]
	rows = make([]models.Row, 0, len(all)-1)
	for _, cells := range all[1:] {
		values := make(map[string]string, len(columns))
		for i, c := range columns {
			if i < len(cells) {
				values[c] = cells[i]
			} else {
				values[c] = ""
			}
		}
		rows = append(rows, models.Row{Values: values})
	}
	return columns, rows, nil
}

// dimensionRows returns the last row of the sheet's recorded dimension, or 0 when the
// workbook carries none.
func dimensionRows(f *excelize.File, sheet string) int {
	dim, err := f.GetSheetDimension(sheet)
	if err != nil || dim == "" {
		return 0
	}
	ref := dim
	if i := strings.LastIndex(dim, ":"); i >= 0 {
		ref = dim[i+1:]
	}
	_, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return 0
	}
	return row
}

// SanitizeSheetName returns a worksheet name Excel accepts.
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		return DefaultSheetName
	}
	return name
}

// SanitizeFileName turns a user-supplied name into a bare file name ending in .xlsx.
// Directory components and characters unsafe in file names or headers are dropped;
// an empty result falls back to fallback (or DefaultFileName).
func SanitizeFileName(name, fallback string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`"<>:|?*`, r):
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || strings.EqualFold(name, ".xlsx") {
		if fallback == "" {
			return DefaultFileName
		}
		return SanitizeFileName(fallback, "")
	}
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}
