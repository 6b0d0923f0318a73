package xltable

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ukaji3/xltable-go/pkg/xltable/mapping"
	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"github.com/ukaji3/xltable-go/pkg/xltable/parser"
)

// Sink receives extracted records. AddRow starts a record; Set assigns one
// of the fields declared by Fields. Fields never set stay null.
type Sink interface {
	Fields() []models.Field
	AddRow() error
	Set(field int, v models.Value) error
}

// Result summarizes an extraction run. It is returned on failure as well,
// carrying the diagnostics emitted up to the fatal error.
type Result struct {
	RunID    string                 `json:"run_id"`
	Table    models.TableDescriptor `json:"table"`
	Mappings []models.ColumnMapping `json:"mappings,omitempty"`
	Records  int                    `json:"records"`
	Events   []Event                `json:"events"`
}

type opener func() (parser.Workbook, func() error, error)

// Extract reads the table named in opts from the xlsx file at path and
// delivers its rows to sink.
//
// The mapping declarations are checked against the sink before the file is
// opened. The file is closed on every return path.
func Extract(path string, opts Options, sink Sink) (*Result, error) {
	return execute(opts, sink, func() (parser.Workbook, func() error, error) {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		pkg, err := parser.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open %q: %w", path, err)
		}
		return pkg, pkg.Close, nil
	})
}

// ExtractReader is Extract for a document held in memory or another ReaderAt.
func ExtractReader(r io.ReaderAt, size int64, opts Options, sink Sink) (*Result, error) {
	return execute(opts, sink, func() (parser.Workbook, func() error, error) {
		pkg, err := parser.OpenReader(r, size)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open workbook: %w", err)
		}
		return pkg, pkg.Close, nil
	})
}

// ExtractWorkbook runs the extraction over an already opened workbook.
// The caller keeps ownership of wb.
func ExtractWorkbook(wb parser.Workbook, opts Options, sink Sink) (*Result, error) {
	return execute(opts, sink, func() (parser.Workbook, func() error, error) {
		return wb, func() error { return nil }, nil
	})
}

func execute(opts Options, sink Sink, open opener) (*Result, error) {
	rn := opts.reporter().newRun(opts.Logger)
	res := &Result{RunID: rn.id}

	err := rn.execute(opts, sink, open, res)
	res.Events = rn.events
	if err != nil {
		return res, err
	}
	return res, nil
}

func (rn *run) execute(opts Options, sink Sink, open opener, res *Result) (err error) {
	binding, err := rn.configure(opts, sink)
	if err != nil {
		return rn.fail(NewExtractionError(KindConfiguration, err))
	}

	rn.Info("attempting to open workbook")
	wb, closeFn, err := open()
	if err != nil {
		return rn.fail(NewExtractionError(KindIO, err))
	}
	defer func() {
		rn.Info("closing workbook")
		if cerr := closeFn(); cerr != nil && err == nil {
			err = rn.fail(NewExtractionError(KindIO, cerr))
		}
	}()
	rn.Info("workbook opened")

	return rn.extract(wb, opts, binding, sink, res)
}

// configure validates the declarations and binds them to the sink fields.
func (rn *run) configure(opts Options, sink Sink) (mapping.Binding, error) {
	if opts.Table == "" {
		return nil, errors.New("no table name configured")
	}
	if opts.Mappings == nil || opts.Mappings.Len() == 0 {
		return nil, errors.New("no column mappings declared")
	}
	if sink == nil {
		return nil, errors.New("no sink configured")
	}

	for _, m := range opts.Mappings.Mappings() {
		if dt, err := models.ParseDataType(string(m.DataType)); err != nil || dt != m.DataType {
			return nil, fmt.Errorf("%w: %q for column %q", mapping.ErrUnsupportedType, m.DataType, m.SourceName)
		}
		rn.Info("creating mapping", "type", string(m.DataType), "source", m.SourceName, "field", m.TargetField)
	}

	binding, err := opts.Mappings.Bind(sink.Fields())
	if err != nil {
		return nil, err
	}
	rn.Info("column mappings defined", "count", opts.Mappings.Len())
	return binding, nil
}

func (rn *run) extract(wb parser.Workbook, opts Options, binding mapping.Binding, sink Sink, res *Result) error {
	loc, err := parser.FindTable(wb, opts.Table, rn)
	if err != nil {
		return rn.fail(err)
	}
	desc := loc.Table
	res.Table = desc

	rn.Info("collecting column offsets for mapped columns")
	plan, err := opts.Mappings.ResolveOffsets(desc, binding)
	var missing *mapping.MissingColumnsError
	if errors.As(err, &missing) {
		// Every missing column is reported before the run aborts.
		for _, col := range missing.Columns {
			rn.Error(fmt.Sprintf("unable to locate column %q in table %q", col, desc.Name),
				"kind", string(KindColumnNotFound), "column", col)
		}
		return &ExtractionError{Kind: KindColumnNotFound, Sheet: desc.Sheet, Err: err}
	}
	if err != nil {
		return rn.fail(NewExtractionError(KindConfiguration, err))
	}
	res.Mappings = plan.Mappings()
	for _, m := range res.Mappings {
		rn.Info("found column", "column", m.SourceName, "offset", m.ResolvedOffset)
	}

	sst := wb.SharedStrings()
	rn.Info("preparing to read table rows", "rows", len(loc.Rows))
	for _, row := range loc.Rows {
		if row.Index < desc.HeaderRowIndex {
			rn.Info("skipping non-table or header row", "row", row.Index)
			continue
		}
		rn.Info("reading data row", "row", row.Index)

		staged, err := rn.stageRow(desc, plan, row, sst)
		if err != nil {
			return rn.fail(err)
		}
		if len(staged) == 0 {
			continue
		}
		if err := rn.commitRow(sink, staged); err != nil {
			return rn.fail(&ExtractionError{Kind: KindSink, Sheet: desc.Sheet, Row: row.Index, Err: err})
		}
		res.Records++
	}

	rn.Info("extraction complete", "table", desc.Name, "records", res.Records)
	return nil
}

type stagedValue struct {
	field  int
	target string
	value  models.Value
}

// stageRow coerces the mapped cells of a row. Cells without a value, and
// blank cells of blank-as-null mappings, are skipped. An empty result means
// the row produces no record.
func (rn *run) stageRow(desc models.TableDescriptor, plan *mapping.Plan, row models.Row, sst []string) ([]stagedValue, error) {
	var staged []stagedValue
	for _, cell := range row.Cells {
		coord, err := parser.DecodeCell(cell.Ref)
		if err != nil {
			return nil, &ExtractionError{Kind: KindParse, Sheet: desc.Sheet, Row: row.Index, Err: err}
		}
		idxs := plan.At(coord.Column)
		if len(idxs) == 0 {
			continue
		}

		text, ok, err := parser.CellText(cell, sst)
		if err != nil {
			return nil, &ExtractionError{Kind: KindOf(err), Sheet: desc.Sheet, Row: row.Index, Err: err}
		}

		for _, i := range idxs {
			m := plan.Mapping(i)
			if !ok || (text == "" && m.BlankAsNull) {
				continue
			}
			rn.Info("column contains value", "column", m.SourceName, "value", text)

			v, err := mapping.Coerce(text, m.DataType)
			if err != nil {
				return nil, &ExtractionError{Kind: KindOf(err), Sheet: desc.Sheet, Row: row.Index, Column: m.SourceName, Err: err}
			}
			staged = append(staged, stagedValue{field: plan.Field(i), target: m.TargetField, value: v})
		}
	}
	return staged, nil
}

// commitRow starts a record and sets its staged values in cell order.
func (rn *run) commitRow(sink Sink, staged []stagedValue) error {
	if err := sink.AddRow(); err != nil {
		return fmt.Errorf("add row: %w", err)
	}
	for _, s := range staged {
		if err := sink.Set(s.field, s.value); err != nil {
			return fmt.Errorf("set field %q: %w", s.target, err)
		}
		rn.Info("set field", "field", s.target, "type", string(s.value.Type), "value", s.value.Interface())
	}
	return nil
}
