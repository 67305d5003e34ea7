package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoWorksheet is returned for workbooks without a usable sheet.
var ErrNoWorksheet = errors.New("workbook has no worksheet")

// WorkbookToCSV converts the transaction sheet of an XLSX workbook into
// comma-separated text that Parse accepts. Cells keep their formatted value,
// so dates and amounts read the way the bank displays them.
func WorkbookToCSV(r io.Reader) (string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := findTransactionSheet(f.GetSheetList())
	if sheet == "" {
		return "", ErrNoWorksheet
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write rows: %w", err)
	}
	return buf.String(), nil
}

// findTransactionSheet prefers sheets with a transaction-like name and falls
// back to the first one.
func findTransactionSheet(sheets []string) string {
	if len(sheets) == 0 {
		return ""
	}

	preferredNames := []string{
		"transactions", "movimentos", "extrato", "umsätze",
		"statement", "data", "sheet1",
	}
	for _, preferred := range preferredNames {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}
