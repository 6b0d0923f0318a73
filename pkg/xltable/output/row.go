// Package output provides record sinks for the extraction engine.
//
// Every sink implements xltable.Sink and exposes Close, which the caller
// invokes once the run has finished.
package output

import (
	"errors"
	"fmt"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

var (
	// ErrNoRow indicates Set was called before AddRow.
	ErrNoRow = errors.New("no row started")
	// ErrFieldIndex indicates a field index outside the declared fields.
	ErrFieldIndex = errors.New("field index out of range")
	// ErrTypeMismatch indicates a value whose type differs from its field.
	ErrTypeMismatch = errors.New("value type does not match field type")
	// ErrClosed indicates a write to a closed sink.
	ErrClosed = errors.New("sink closed")
)

// rowBuffer holds the record currently being filled.
type rowBuffer struct {
	fields []models.Field
	values []models.Value
	open   bool
	closed bool
}

func newRowBuffer(fields []models.Field) rowBuffer {
	return rowBuffer{fields: append([]models.Field(nil), fields...)}
}

// start begins a new record. The previous record, if any, is returned.
func (b *rowBuffer) start() (prev []models.Value, ok bool, err error) {
	if b.closed {
		return nil, false, ErrClosed
	}
	prev, ok = b.values, b.open
	b.values = make([]models.Value, len(b.fields))
	b.open = true
	return prev, ok, nil
}

func (b *rowBuffer) set(field int, v models.Value) error {
	if b.closed {
		return ErrClosed
	}
	if !b.open {
		return ErrNoRow
	}
	if field < 0 || field >= len(b.fields) {
		return fmt.Errorf("%w: %d", ErrFieldIndex, field)
	}
	if f := b.fields[field]; !v.IsNull() && v.Type != f.Type {
		return fmt.Errorf("%w: field %q is %s, value is %s", ErrTypeMismatch, f.Name, f.Type, v.Type)
	}
	b.values[field] = v
	return nil
}

// finish closes the buffer and returns the pending record, if any.
func (b *rowBuffer) finish() (last []models.Value, ok bool) {
	if b.closed {
		return nil, false
	}
	last, ok = b.values, b.open
	b.values, b.open, b.closed = nil, false, true
	return last, ok
}
