package parser

import (
	"encoding/xml"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"github.com/xuri/excelize/v2"
)

// Cell type tags.
const (
	cellTypeSharedString = "s"
	cellTypeInlineString = "inlineStr"
)

type xlsxC struct {
	R  string  `xml:"r,attr"`
	T  string  `xml:"t,attr"`
	V  *string `xml:"v"`
	IS *xlsxSI `xml:"is"`
}

type xlsxRow struct {
	R     int     `xml:"r,attr"`
	Cells []xlsxC `xml:"c"`
}

type xlsxWorksheet struct {
	Rows []xlsxRow `xml:"sheetData>row"`
}

// parseSheetRows decodes the sheetData of a worksheet part.
//
// Rows and cells that omit their reference take the position following the
// previous one.
func parseSheetRows(data []byte) ([]models.Row, error) {
	var ws xlsxWorksheet
	if err := xml.Unmarshal(data, &ws); err != nil {
		return nil, err
	}

	result := make([]models.Row, 0, len(ws.Rows))
	prevRow := 0
	for _, r := range ws.Rows {
		rowNum := r.R
		if rowNum == 0 {
			rowNum = prevRow + 1
		}
		prevRow = rowNum

		row := models.Row{Index: rowNum, Cells: make([]models.RawCellValue, 0, len(r.Cells))}
		prevCol := 0
		for _, c := range r.Cells {
			ref := c.R
			if ref == "" {
				name, err := excelize.CoordinatesToCellName(prevCol+1, rowNum)
				if err != nil {
					return nil, err
				}
				ref = name
			}
			if coord, err := DecodeCell(ref); err == nil {
				prevCol = coord.Column
			} else {
				prevCol++
			}

			row.Cells = append(row.Cells, rawCell(ref, c))
		}
		result = append(result, row)
	}

	return result, nil
}

// rawCell converts a stored cell. A cell holding only a formula without a
// cached value has no value.
func rawCell(ref string, c xlsxC) models.RawCellValue {
	cell := models.RawCellValue{Ref: ref}
	switch {
	case c.T == cellTypeInlineString && c.IS != nil:
		cell.Text = c.IS.text()
		cell.Present = true
	case c.V != nil:
		cell.Text = *c.V
		cell.Present = true
		cell.Shared = c.T == cellTypeSharedString
	}
	return cell
}
