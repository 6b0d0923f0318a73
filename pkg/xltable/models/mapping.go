package models

import (
	"fmt"
	"strings"
)

// DataType is the target type of a mapped column.
type DataType string

const (
	// DataTypeString passes the cell text through unchanged.
	DataTypeString DataType = "string"
	// DataTypeInt32 parses the cell text as a base-10 32-bit integer.
	DataTypeInt32 DataType = "int32"
	// DataTypeDateTime reads the cell text as a serial day count.
	DataTypeDateTime DataType = "datetime"
	// DataTypeBoolean accepts YES/Y/TRUE and NO/N/FALSE.
	DataTypeBoolean DataType = "boolean"
)

// ParseDataType converts a declared type name to a DataType.
// Matching is case-insensitive and accepts a few common aliases.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text", "str":
		return DataTypeString, nil
	case "int32", "int", "integer":
		return DataTypeInt32, nil
	case "datetime", "date", "timestamp":
		return DataTypeDateTime, nil
	case "boolean", "bool":
		return DataTypeBoolean, nil
	}
	return "", fmt.Errorf("unknown data type %q", s)
}

// ColumnMapping binds a source column of the table to a target field.
type ColumnMapping struct {
	// SourceName is the table header name (exact, case-sensitive match).
	SourceName string `json:"source"`
	// TargetField is the name of the output field.
	TargetField string `json:"field"`
	// DataType is the type the cell text is coerced to.
	DataType DataType `json:"type"`
	// BlankAsNull skips empty cell values instead of setting "".
	BlankAsNull bool `json:"blank_as_null"`
	// ResolvedOffset is the 1-based position of SourceName among the table
	// columns. Zero until resolved.
	ResolvedOffset int `json:"resolved_offset,omitempty"`
}

// Resolved reports whether the mapping has been matched to a table column.
func (m ColumnMapping) Resolved() bool {
	return m.ResolvedOffset > 0
}
