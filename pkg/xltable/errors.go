package xltable

import (
	"errors"
	"fmt"

	"github.com/ukaji3/xltable-go/pkg/xltable/mapping"
	"github.com/ukaji3/xltable-go/pkg/xltable/parser"
)

// ErrorKind classifies extraction failures. Every kind is fatal to the run.
type ErrorKind string

const (
	// KindConfiguration: mapping declarations do not fit the sink.
	KindConfiguration ErrorKind = "configuration"
	// KindParse: malformed cell or range reference.
	KindParse ErrorKind = "parse"
	// KindTableNotFound: no sheet declares the requested table.
	KindTableNotFound ErrorKind = "table_not_found"
	// KindColumnNotFound: mapped source columns are absent from the table.
	KindColumnNotFound ErrorKind = "column_not_found"
	// KindTypeCoercion: a cell value cannot be converted to its mapped type.
	KindTypeCoercion ErrorKind = "type_coercion"
	// KindSink: the sink rejected a record or value.
	KindSink ErrorKind = "sink"
	// KindIO: the document cannot be opened or read.
	KindIO ErrorKind = "io"
)

// ErrFileNotFound indicates the input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ExtractionError represents a fatal error during extraction.
type ExtractionError struct {
	Kind ErrorKind
	// Sheet, Row and Column locate the failing cell when known.
	Sheet  string
	Row    int
	Column string
	Err    error
}

func (e *ExtractionError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("%s error in sheet %q row %d column %q: %v", e.Kind, e.Sheet, e.Row, e.Column, e.Err)
	case e.Sheet != "":
		return fmt.Sprintf("%s error in sheet %q: %v", e.Kind, e.Sheet, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(kind ErrorKind, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Err: err}
}

// KindOf classifies err. Errors that are not ExtractionErrors are classified
// by the sentinel they wrap and default to KindIO.
func KindOf(err error) ErrorKind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}

	switch {
	case errors.Is(err, mapping.ErrFieldCount), errors.Is(err, mapping.ErrUnboundField),
		errors.Is(err, mapping.ErrUnsupportedType), errors.Is(err, ErrNoDataSource):
		return KindConfiguration
	case errors.Is(err, parser.ErrInvalidReference):
		return KindParse
	case errors.Is(err, parser.ErrTableNotFound):
		return KindTableNotFound
	case errors.Is(err, mapping.ErrColumnNotFound):
		return KindColumnNotFound
	case errors.Is(err, mapping.ErrTypeCoercion):
		return KindTypeCoercion
	}
	return KindIO
}

// classify wraps err as an ExtractionError unless it already is one.
func classify(err error) *ExtractionError {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee
	}
	return NewExtractionError(KindOf(err), err)
}
