// Package models defines data structures for table extraction.
package models

// CellCoordinate is a decoded cell reference.
type CellCoordinate struct {
	// Column is the 1-based column number (A=1, Z=26, AA=27).
	Column int `json:"column"`
	// Row is the 1-based row number.
	Row int `json:"row"`
}

// RawCellValue is a cell's stored content before shared-string resolution.
type RawCellValue struct {
	// Ref is the cell reference as written in the sheet (e.g. "B7").
	Ref string `json:"ref"`
	// Text is the stored value. For shared-string cells it is the index
	// into the workbook's shared-string table.
	Text string `json:"text"`
	// Present is false when the cell carries no value at all.
	Present bool `json:"present"`
	// Shared marks Text as a shared-string index.
	Shared bool `json:"shared,omitempty"`
}
