// Package workbooktest builds Yape report workbooks for tests.
package workbooktest

import (
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/yape-tracker/constants"
)

// Report describes a workbook in the Yape export layout. Rows start at
// spreadsheet row 6; a nil row leaves that spreadsheet row untouched.
type Report struct {
	Sheet   string
	Title   string
	Headers []string
	Rows    [][]any
}

// Build renders r into .xlsx bytes.
func Build(t testing.TB, r Report) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if r.Sheet != "" {
		if err := f.SetSheetName(sheet, r.Sheet); err != nil {
			t.Fatalf("rename sheet: %v", err)
		}
		sheet = r.Sheet
	}

	title := r.Title
	if title == "" {
		title = constants.ReportTitle
	}
	set(t, f, sheet, 1, 1, title)
	set(t, f, sheet, 1, 3, "Generado desde la app Yape")

	headers := r.Headers
	if headers == nil {
		headers = constants.ExpectedHeaders
	}
	for i, h := range headers {
		set(t, f, sheet, i+1, constants.HeaderRowIndex+1, h)
	}

	for i, row := range r.Rows {
		for j, v := range row {
			if v == nil {
				continue
			}
			set(t, f, sheet, j+1, constants.FirstDataRow+i, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// Raw renders arbitrary rows starting at spreadsheet row 1.
func Raw(t testing.TB, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		for j, v := range row {
			if v == nil {
				continue
			}
			set(t, f, "Sheet1", j+1, i+1, v)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// Tx is a convenience for a data row in column order A-F.
func Tx(kind, origin, destination string, amount any, message, date string) []any {
	return []any{kind, origin, destination, amount, message, date}
}

func set(t testing.TB, f *excelize.File, sheet string, col, row int, v any) {
	t.Helper()
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		t.Fatalf("cell name: %v", err)
	}
	if err := f.SetCellValue(sheet, axis, v); err != nil {
		t.Fatalf("set %s: %v", axis, err)
	}
}
