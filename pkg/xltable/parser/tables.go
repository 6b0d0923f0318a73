package parser

import (
	"errors"
	"fmt"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

// ErrTableNotFound indicates no sheet declares a table with the requested name.
var ErrTableNotFound = errors.New("table not found")

// Tracer receives progress messages while scanning.
type Tracer interface {
	Info(msg string, args ...any)
}

type nopTracer struct{}

func (nopTracer) Info(string, ...any) {}

// Location is a located table together with the rows of its sheet.
type Location struct {
	Table models.TableDescriptor
	Rows  []models.Row
}

// FindTable scans the sheets of wb in declaration order for a table whose
// display name equals name (case-sensitive). The first match wins.
//
// The header row is the first row whose column-A cell text equals the
// table's first column name; HeaderRowIndex is set to the row after it.
func FindTable(wb Workbook, name string, tr Tracer) (*Location, error) {
	if tr == nil {
		tr = nopTracer{}
	}

	tr.Info("searching sheets for table", "table", name)

	var (
		found     *TableDef
		sheetName string
	)
	for _, sheet := range wb.Sheets() {
		tr.Info("examining sheet", "sheet", sheet)
		tables, err := wb.Tables(sheet)
		if err != nil {
			return nil, err
		}
		for i := range tables {
			tr.Info("sheet contains table", "sheet", sheet, "table", tables[i].DisplayName)
			if tables[i].DisplayName == name {
				found = &tables[i]
				sheetName = sheet
				break
			}
		}
		if found != nil {
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	tr.Info("sheet and table found", "sheet", sheetName, "table", name)

	desc := models.TableDescriptor{
		Name:    found.DisplayName,
		Sheet:   sheetName,
		Ref:     found.Ref,
		Columns: append([]string(nil), found.Columns...),
	}
	if found.Ref != "" {
		start, end, err := DecodeRange(found.Ref)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		desc.Start, desc.End = start, end
	}

	rows, err := wb.Rows(sheetName)
	if err != nil {
		return nil, err
	}

	if len(desc.Columns) > 0 {
		tr.Info("finding first row of table")
		headerRow, err := findHeaderRow(rows, desc.Columns[0], wb.SharedStrings())
		if err != nil {
			return nil, err
		}
		if headerRow > 0 {
			desc.HeaderRowIndex = headerRow + 1
		}
	}
	if desc.HeaderRowIndex == 0 {
		tr.Info("header row not found, reading every row", "header", firstOrEmpty(desc.Columns))
	} else {
		tr.Info("first row of table located", "row", desc.HeaderRowIndex)
	}

	return &Location{Table: desc, Rows: rows}, nil
}

// findHeaderRow returns the index of the first row whose column-1 cell equals
// header, or 0 if none does.
func findHeaderRow(rows []models.Row, header string, sst []string) (int, error) {
	for _, row := range rows {
		for _, cell := range row.Cells {
			coord, err := DecodeCell(cell.Ref)
			if err != nil {
				return 0, err
			}
			if coord.Column != 1 {
				continue
			}
			text, ok, err := CellText(cell, sst)
			if err != nil {
				return 0, err
			}
			if ok && text == header {
				return row.Index, nil
			}
		}
	}
	return 0, nil
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
