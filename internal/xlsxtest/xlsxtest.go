// Package xlsxtest builds xlsx workbooks for tests.
package xlsxtest

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Table declares a table over a range whose first row holds the headers.
type Table struct {
	Name  string
	Range string
}

// Sheet describes one worksheet. Cells maps references to values.
type Sheet struct {
	Name   string
	Cells  map[string]any
	Tables []Table
}

// New builds a workbook from sheets, in order.
func New(t testing.TB, sheets ...Sheet) *excelize.File {
	t.Helper()

	f := excelize.NewFile()
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				t.Fatalf("Failed to rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("Failed to create sheet %q: %v", s.Name, err)
		}

		for ref, v := range s.Cells {
			if err := f.SetCellValue(s.Name, ref, v); err != nil {
				t.Fatalf("Failed to set %s!%s: %v", s.Name, ref, err)
			}
		}
		for _, tbl := range s.Tables {
			if err := f.AddTable(s.Name, &excelize.Table{Range: tbl.Range, Name: tbl.Name}); err != nil {
				t.Fatalf("Failed to add table %q: %v", tbl.Name, err)
			}
		}
	}
	return f
}

// Save writes the workbook into a temporary directory and returns its path.
func Save(t testing.TB, sheets ...Sheet) string {
	t.Helper()

	f := New(t, sheets...)
	defer f.Close()

	path := filepath.Join(t.TempDir(), "test.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}
	return path
}

// Bytes returns the workbook as an xlsx document.
func Bytes(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()

	f := New(t, sheets...)
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

// Orders returns the sample used across tests: table T1 on sheet "Data"
// with headers FA, USID, ECD in row 1 and three data rows. Every cell of the
// second data row holds an empty string.
func Orders() Sheet {
	return Sheet{
		Name: "Data",
		Cells: map[string]any{
			"A1": "FA", "B1": "USID", "C1": "ECD",
			"A2": "1000", "B2": "U-1", "C2": 45000,
			"A3": "", "B3": "", "C3": "",
			"A4": "3000", "B4": "U-3", "C4": 45001.5,
		},
		Tables: []Table{{Name: "T1", Range: "A1:C4"}},
	}
}
