// Package parser reads xlsx packages and decodes cell references.
package parser

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SerialEpoch is day zero of the serial day count used for date cells.
var SerialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Offsets bounding 0001-01-01 and 9999-12-31 relative to SerialEpoch.
const (
	minSerialOffset = -693593
	maxSerialOffset = 2958465
)

// ErrSerialOutOfRange indicates a serial that maps outside years 1-9999.
var ErrSerialOutOfRange = errors.New("serial date out of range")

// SerialToTime converts a serial day count to a time.
//
// The result is SerialEpoch + (serial - 2) days, so serial 2 maps to
// 1899-12-30. The fractional part is the time of day, rounded to the
// millisecond.
func SerialToTime(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, fmt.Errorf("%w: %v", ErrSerialOutOfRange, serial)
	}

	offset := serial - 2
	if offset < minSerialOffset || offset >= maxSerialOffset+1 {
		return time.Time{}, fmt.Errorf("%w: %v", ErrSerialOutOfRange, serial)
	}

	days := math.Floor(offset)
	millis := int64(math.Round((offset - days) * 86400000.0))

	return SerialEpoch.AddDate(0, 0, int(days)).Add(time.Duration(millis) * time.Millisecond), nil
}
