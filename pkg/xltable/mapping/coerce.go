package mapping

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"github.com/ukaji3/xltable-go/pkg/xltable/parser"
)

// ErrTypeCoercion indicates a cell value that cannot be converted to its
// mapped type.
var ErrTypeCoercion = errors.New("type coercion failed")

// ErrUnsupportedType indicates a mapping declared with an unknown data type.
var ErrUnsupportedType = errors.New("unsupported data type")

// CoercionError describes a failed conversion.
type CoercionError struct {
	Value string
	Type  models.DataType
	Err   error
}

func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %q to %s: %v", e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("cannot convert %q to %s", e.Value, e.Type)
}

func (e *CoercionError) Is(target error) bool {
	return target == ErrTypeCoercion
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// Coerce converts raw cell text to a typed value.
//
//   - string: passed through unchanged
//   - int32: base-10 integer, surrounding whitespace allowed
//   - datetime: serial day count, see parser.SerialToTime
//   - boolean: YES/Y/TRUE or NO/N/FALSE, trimmed and case-insensitive
func Coerce(raw string, dataType models.DataType) (models.Value, error) {
	switch dataType {
	case models.DataTypeString:
		return models.StringValue(raw), nil

	case models.DataTypeInt32:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			return models.Value{}, &CoercionError{Value: raw, Type: dataType, Err: unwrapNumErr(err)}
		}
		return models.Int32Value(int32(i)), nil

	case models.DataTypeDateTime:
		serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return models.Value{}, &CoercionError{Value: raw, Type: dataType, Err: unwrapNumErr(err)}
		}
		t, err := parser.SerialToTime(serial)
		if err != nil {
			return models.Value{}, &CoercionError{Value: raw, Type: dataType, Err: err}
		}
		return models.DateTimeValue(t), nil

	case models.DataTypeBoolean:
		switch strings.ToUpper(strings.TrimSpace(raw)) {
		case "YES", "Y", "TRUE":
			return models.BooleanValue(true), nil
		case "NO", "N", "FALSE":
			return models.BooleanValue(false), nil
		}
		return models.Value{}, &CoercionError{Value: raw, Type: dataType, Err: errors.New("invalid boolean value")}
	}

	return models.Value{}, fmt.Errorf("%w: %q", ErrUnsupportedType, dataType)
}

func unwrapNumErr(err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return numErr.Err
	}
	return err
}
