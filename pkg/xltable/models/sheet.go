package models

// Row is a single sheet row with the cells stored for it.
type Row struct {
	// Index is the 1-based row number.
	Index int `json:"index"`
	// Cells are the stored cells in document order.
	Cells []RawCellValue `json:"cells"`
}
