package models

import (
	"encoding/json"
	"time"
)

// Field is a declared output field.
type Field struct {
	Name string   `json:"name"`
	Type DataType `json:"type"`
}

// Value is a typed field value. The zero Value is null.
type Value struct {
	Type   DataType
	String string
	Int32  int32
	Time   time.Time
	Bool   bool
}

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{Type: DataTypeString, String: s} }

// Int32Value returns an int32 Value.
func Int32Value(i int32) Value { return Value{Type: DataTypeInt32, Int32: i} }

// DateTimeValue returns a datetime Value.
func DateTimeValue(t time.Time) Value { return Value{Type: DataTypeDateTime, Time: t} }

// BooleanValue returns a boolean Value.
func BooleanValue(b bool) Value { return Value{Type: DataTypeBoolean, Bool: b} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.Type == ""
}

// Interface returns the value as a native Go value, or nil when null.
func (v Value) Interface() any {
	switch v.Type {
	case DataTypeString:
		return v.String
	case DataTypeInt32:
		return v.Int32
	case DataTypeDateTime:
		return v.Time
	case DataTypeBoolean:
		return v.Bool
	}
	return nil
}

// MarshalJSON encodes the native value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Record is one emitted output row.
type Record struct {
	// Values holds one entry per declared field, in field order.
	Values []Value `json:"values"`
}

// Map returns the record keyed by field name.
func (r Record) Map(fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for i, f := range fields {
		if i < len(r.Values) {
			out[f.Name] = r.Values[i].Interface()
		}
	}
	return out
}
