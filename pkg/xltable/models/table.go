package models

// TableDescriptor describes a located table.
type TableDescriptor struct {
	// Name is the table's display name.
	Name string `json:"name"`
	// Sheet is the name of the sheet owning the table.
	Sheet string `json:"sheet"`
	// Ref is the table range as declared (e.g. "A1:C4").
	Ref string `json:"ref,omitempty"`
	// Start is the top-left cell of Ref.
	Start CellCoordinate `json:"start"`
	// End is the bottom-right cell of Ref.
	End CellCoordinate `json:"end"`
	// HeaderRowIndex is the first row read as data (header row + 1).
	// Zero means no header row was found.
	HeaderRowIndex int `json:"header_row_index"`
	// Columns are the header names in declaration order.
	Columns []string `json:"columns"`
}
