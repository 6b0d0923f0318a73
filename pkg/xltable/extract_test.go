package xltable

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ukaji3/xltable-go/internal/xlsxtest"
	"github.com/ukaji3/xltable-go/pkg/xltable/mapping"
	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"github.com/ukaji3/xltable-go/pkg/xltable/output"
	"github.com/ukaji3/xltable-go/pkg/xltable/parser"
)

func quietReporter() *Reporter {
	return NewReporter(slog.New(slog.NewTextHandler(io.Discard, nil)), "test", false)
}

func ordersRegistry() *mapping.Registry {
	r := mapping.NewRegistry()
	r.Map("FA", "fa", models.DataTypeString, true)
	r.Map("USID", "usid", models.DataTypeString, true)
	r.Map("ECD", "ecd", models.DataTypeDateTime, true)
	return r
}

func ordersOptions() Options {
	return Options{Table: "T1", Mappings: ordersRegistry(), Reporter: quietReporter()}
}

func TestExtract(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())
	opts := ordersOptions()
	sink := output.NewMemory(opts.Mappings.Fields())

	res, err := Extract(path, opts, sink)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	if res.Records != 2 {
		t.Errorf("Records = %d, expected 2", res.Records)
	}
	if res.RunID == "" {
		t.Error("Expected a run ID")
	}
	if res.Table.Sheet != "Data" || res.Table.HeaderRowIndex != 2 {
		t.Errorf("Unexpected table %+v", res.Table)
	}
	if len(res.Mappings) != 3 || res.Mappings[2].ResolvedOffset != 3 {
		t.Errorf("Unexpected resolved mappings %+v", res.Mappings)
	}

	expected := []map[string]any{
		{"fa": "1000", "usid": "U-1", "ecd": parser.SerialEpoch.AddDate(0, 0, 44998)},
		{"fa": "3000", "usid": "U-3", "ecd": parser.SerialEpoch.AddDate(0, 0, 44999).Add(12 * time.Hour)},
	}
	got := sink.Maps()
	if len(got) != len(expected) {
		t.Fatalf("Expected %d records, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i]["fa"] != expected[i]["fa"] || got[i]["usid"] != expected[i]["usid"] {
			t.Errorf("record %d = %v, expected %v", i, got[i], expected[i])
		}
		if ts, _ := got[i]["ecd"].(time.Time); !ts.Equal(expected[i]["ecd"].(time.Time)) {
			t.Errorf("record %d ecd = %v, expected %v", i, got[i]["ecd"], expected[i]["ecd"])
		}
	}
}

func TestExtractAllBlankRow(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())

	// Row 3 stores "" in every mapped cell. With blank-as-null everywhere it
	// produces no record.
	opts := ordersOptions()
	sink := output.NewMemory(opts.Mappings.Fields())
	res, err := Extract(path, opts, sink)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Records != 2 || len(sink.Records()) != 2 {
		t.Fatalf("Records = %d (sink %d), expected 2", res.Records, len(sink.Records()))
	}

	// Keeping blanks for USID turns the same row into a record.
	r := mapping.NewRegistry()
	r.Map("FA", "fa", models.DataTypeString, true)
	r.Map("USID", "usid", models.DataTypeString, false)
	keep := output.NewMemory(r.Fields())
	res, err = Extract(path, Options{Table: "T1", Mappings: r, Reporter: quietReporter()}, keep)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Records != 3 {
		t.Fatalf("Records = %d, expected 3", res.Records)
	}
	blank := keep.Records()[1]
	if !blank.Values[0].IsNull() || blank.Values[1].IsNull() || blank.Values[1].String != "" {
		t.Errorf("blank row = %+v, expected null fa and empty usid", blank.Values)
	}
}

func TestExtractIdempotent(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())
	opts := ordersOptions()

	var outputs [][]map[string]any
	for i := 0; i < 2; i++ {
		sink := output.NewMemory(opts.Mappings.Fields())
		if _, err := Extract(path, opts, sink); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		outputs = append(outputs, sink.Maps())
	}

	if !reflect.DeepEqual(outputs[0], outputs[1]) {
		t.Errorf("Runs differ:\n%v\n%v", outputs[0], outputs[1])
	}
}

func TestExtractReader(t *testing.T) {
	data := xlsxtest.Bytes(t, xlsxtest.Orders())
	opts := ordersOptions()
	sink := output.NewMemory(opts.Mappings.Fields())

	res, err := ExtractReader(bytes.NewReader(data), int64(len(data)), opts, sink)
	if err != nil {
		t.Fatalf("ExtractReader failed: %v", err)
	}
	if res.Records != 2 || len(sink.Records()) != 2 {
		t.Errorf("Expected 2 records, got %d (sink %d)", res.Records, len(sink.Records()))
	}
}

func TestExtractSubsetOfColumns(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())
	r := mapping.NewRegistry()
	r.Map("USID", "usid", models.DataTypeString, true)
	sink := output.NewMemory(r.Fields())

	res, err := Extract(path, Options{Table: "T1", Mappings: r, Reporter: quietReporter()}, sink)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Records != 2 {
		t.Errorf("Records = %d, expected 2", res.Records)
	}
	if got := sink.Maps()[1]["usid"]; got != "U-3" {
		t.Errorf("usid = %v, expected U-3", got)
	}
}

func TestExtractConfigurationBeforeIO(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.xlsx")

	tests := []struct {
		name string
		opts Options
		sink Sink
	}{
		{"no table", Options{Mappings: ordersRegistry()}, output.NewMemory(ordersRegistry().Fields())},
		{"no mappings", Options{Table: "T1", Mappings: mapping.NewRegistry()}, output.NewMemory(nil)},
		{"no sink", Options{Table: "T1", Mappings: ordersRegistry()}, nil},
		{"field count", Options{Table: "T1", Mappings: ordersRegistry()}, output.NewMemory(ordersRegistry().Fields()[:2])},
		{"field type", Options{Table: "T1", Mappings: ordersRegistry()}, output.NewMemory([]models.Field{
			{Name: "fa", Type: models.DataTypeInt32},
			{Name: "usid", Type: models.DataTypeString},
			{Name: "ecd", Type: models.DataTypeDateTime},
		})},
		{"unknown data type", Options{Table: "T1", Mappings: mapping.NewRegistry(
			models.ColumnMapping{SourceName: "FA", TargetField: "fa", DataType: "decimal"},
		)}, output.NewMemory([]models.Field{{Name: "fa", Type: "decimal"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Reporter = quietReporter()
			res, err := Extract(missing, tt.opts, tt.sink)
			if KindOf(err) != KindConfiguration {
				t.Fatalf("error = %v (kind %s), expected configuration", err, KindOf(err))
			}
			if res == nil || len(res.Events) == 0 {
				t.Error("Expected the error to be reported")
			}
		})
	}
}

func TestExtractMissingFile(t *testing.T) {
	opts := ordersOptions()
	_, err := Extract(filepath.Join(t.TempDir(), "missing.xlsx"), opts, output.NewMemory(opts.Mappings.Fields()))

	if KindOf(err) != KindIO {
		t.Errorf("kind = %s, expected io", KindOf(err))
	}
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("error = %v, expected ErrFileNotFound", err)
	}
}

func TestExtractNotAWorkbook(t *testing.T) {
	data := []byte("id,name\n1,a\n")
	opts := ordersOptions()
	_, err := ExtractReader(bytes.NewReader(data), int64(len(data)), opts, output.NewMemory(opts.Mappings.Fields()))
	if KindOf(err) != KindIO {
		t.Errorf("kind = %s, expected io", KindOf(err))
	}
}

func TestExtractTableNotFound(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())
	opts := ordersOptions()
	opts.Table = "t1"

	res, err := Extract(path, opts, output.NewMemory(opts.Mappings.Fields()))
	if KindOf(err) != KindTableNotFound {
		t.Fatalf("kind = %s, expected table_not_found (%v)", KindOf(err), err)
	}
	if res.Records != 0 {
		t.Errorf("Records = %d, expected 0", res.Records)
	}
}

func TestExtractMissingColumns(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())
	r := mapping.NewRegistry()
	r.Map("FA", "fa", models.DataTypeString, true)
	r.Map("MISSING", "m", models.DataTypeString, true)
	r.Map("Other", "o", models.DataTypeString, true)
	sink := output.NewMemory(r.Fields())

	res, err := Extract(path, Options{Table: "T1", Mappings: r, Reporter: quietReporter()}, sink)
	if KindOf(err) != KindColumnNotFound {
		t.Fatalf("kind = %s, expected column_not_found (%v)", KindOf(err), err)
	}

	var reported []string
	for _, ev := range res.Events {
		if ev.Severity == SeverityError {
			reported = append(reported, ev.Fields["column"].(string))
		}
	}
	if !reflect.DeepEqual(reported, []string{"MISSING", "Other"}) {
		t.Errorf("Reported columns %v, expected [MISSING Other]", reported)
	}
	if len(sink.Records()) != 0 {
		t.Errorf("Expected no records, got %d", len(sink.Records()))
	}
}

func TestExtractInvalidBoolean(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Sheet{
		Name: "Flags",
		Cells: map[string]any{
			"A1": "Code", "B1": "Active",
			"A2": "a", "B2": "Y",
			"A3": "b", "B3": "maybe",
			"A4": "c", "B4": "N",
		},
		Tables: []xlsxtest.Table{{Name: "Flags", Range: "A1:B4"}},
	})

	r := mapping.NewRegistry()
	r.Map("Code", "code", models.DataTypeString, true)
	r.Map("Active", "active", models.DataTypeBoolean, true)
	sink := output.NewMemory(r.Fields())

	res, err := Extract(path, Options{Table: "Flags", Mappings: r, Reporter: quietReporter()}, sink)
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected *ExtractionError, got %v", err)
	}
	if ee.Kind != KindTypeCoercion || ee.Row != 3 || ee.Column != "Active" || ee.Sheet != "Flags" {
		t.Errorf("Unexpected error %+v", ee)
	}
	if !errors.Is(err, mapping.ErrTypeCoercion) {
		t.Errorf("error %v does not wrap ErrTypeCoercion", err)
	}

	// Only the row before the failure reached the sink.
	if res.Records != 1 {
		t.Errorf("Records = %d, expected 1", res.Records)
	}
	records := sink.Maps()
	if len(records) != 1 || records[0]["code"] != "a" || records[0]["active"] != true {
		t.Errorf("Unexpected records %v", records)
	}
}

// memWorkbook is a parser.Workbook with one sheet.
type memWorkbook struct {
	table parser.TableDef
	rows  []models.Row
}

func (w memWorkbook) Sheets() []string { return []string{"Data"} }

func (w memWorkbook) Tables(string) ([]parser.TableDef, error) {
	return []parser.TableDef{w.table}, nil
}

func (w memWorkbook) Rows(string) ([]models.Row, error) { return w.rows, nil }

func (w memWorkbook) SharedStrings() []string { return []string{"Code", "Note"} }

func cell(ref, text string) models.RawCellValue {
	return models.RawCellValue{Ref: ref, Text: text, Present: true}
}

func notesWorkbook() memWorkbook {
	return memWorkbook{
		table: parser.TableDef{Name: "Table1", DisplayName: "Notes", Ref: "A1:B4", Columns: []string{"Code", "Note"}},
		rows: []models.Row{
			{Index: 1, Cells: []models.RawCellValue{
				{Ref: "A1", Text: "0", Present: true, Shared: true},
				{Ref: "B1", Text: "1", Present: true, Shared: true},
			}},
			{Index: 2, Cells: []models.RawCellValue{cell("A2", "a"), cell("B2", "")}},
			{Index: 3, Cells: []models.RawCellValue{{Ref: "A3"}, {Ref: "B3"}}},
			{Index: 4, Cells: []models.RawCellValue{cell("B4", "x")}},
		},
	}
}

func TestExtractBlankAsNull(t *testing.T) {
	for _, blankAsNull := range []bool{true, false} {
		r := mapping.NewRegistry()
		r.Map("Code", "code", models.DataTypeString, true)
		r.Map("Note", "note", models.DataTypeString, blankAsNull)
		sink := output.NewMemory(r.Fields())

		res, err := ExtractWorkbook(notesWorkbook(), Options{Table: "Notes", Mappings: r, Reporter: quietReporter()}, sink)
		if err != nil {
			t.Fatalf("ExtractWorkbook failed: %v", err)
		}

		// Row 3 has no values and produces no record.
		if res.Records != 2 {
			t.Errorf("Records = %d, expected 2", res.Records)
		}

		records := sink.Records()
		note := records[0].Values[1]
		if blankAsNull && !note.IsNull() {
			t.Errorf("blank_as_null: note = %+v, expected null", note)
		}
		if !blankAsNull && (note.IsNull() || note.String != "") {
			t.Errorf("blank kept: note = %+v, expected empty string", note)
		}
		if code := records[1].Values[0]; !code.IsNull() {
			t.Errorf("unset code = %+v, expected null", code)
		}
		if note := records[1].Values[1]; note.String != "x" {
			t.Errorf("note = %+v, expected x", note)
		}
	}
}

func TestExtractBadCellReference(t *testing.T) {
	wb := notesWorkbook()
	wb.rows = append(wb.rows, models.Row{Index: 5, Cells: []models.RawCellValue{cell("5B", "y")}})

	r := mapping.NewRegistry()
	r.Map("Note", "note", models.DataTypeString, true)
	_, err := ExtractWorkbook(wb, Options{Table: "Notes", Mappings: r, Reporter: quietReporter()}, output.NewMemory(r.Fields()))
	if KindOf(err) != KindParse {
		t.Errorf("kind = %s, expected parse (%v)", KindOf(err), err)
	}
}

func TestExtractSharedStringOutOfRange(t *testing.T) {
	wb := notesWorkbook()
	wb.rows = append(wb.rows, models.Row{Index: 5, Cells: []models.RawCellValue{
		{Ref: "B5", Text: "9", Present: true, Shared: true},
	}})

	r := mapping.NewRegistry()
	r.Map("Note", "note", models.DataTypeString, true)
	_, err := ExtractWorkbook(wb, Options{Table: "Notes", Mappings: r, Reporter: quietReporter()}, output.NewMemory(r.Fields()))
	if !errors.Is(err, parser.ErrSharedStringOutOfRange) {
		t.Errorf("error = %v, expected ErrSharedStringOutOfRange", err)
	}
}

type failingSink struct {
	*output.Memory
	failAt int
	rows   int
}

func (s *failingSink) AddRow() error {
	s.rows++
	if s.rows == s.failAt {
		return errors.New("disk full")
	}
	return s.Memory.AddRow()
}

func TestExtractSinkError(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())
	opts := ordersOptions()
	sink := &failingSink{Memory: output.NewMemory(opts.Mappings.Fields()), failAt: 2}

	res, err := Extract(path, opts, sink)
	var ee *ExtractionError
	if !errors.As(err, &ee) || ee.Kind != KindSink {
		t.Fatalf("Expected sink error, got %v", err)
	}
	if ee.Row != 4 {
		t.Errorf("Row = %d, expected 4", ee.Row)
	}
	if res.Records != 1 {
		t.Errorf("Records = %d, expected 1", res.Records)
	}
}

func TestReporterMarkerOnce(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())
	var logs bytes.Buffer
	rep := NewReporter(slog.New(slog.NewTextHandler(&logs, nil)), "1.2.3", false)
	opts := Options{Table: "T1", Mappings: ordersRegistry(), Reporter: rep}

	first, err := Extract(path, opts, output.NewMemory(opts.Mappings.Fields()))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Extract(path, opts, output.NewMemory(opts.Mappings.Fields()))
	if err != nil {
		t.Fatal(err)
	}

	marker := "Excel table source (1.2.3) running."
	if len(first.Events) != 1 || first.Events[0].Message != marker {
		t.Errorf("First run events = %+v, expected only the marker", first.Events)
	}
	if len(second.Events) != 0 {
		t.Errorf("Second run events = %+v, expected none", second.Events)
	}
	if n := strings.Count(logs.String(), "running."); n != 1 {
		t.Errorf("Marker logged %d times, expected 1", n)
	}
	if first.RunID == second.RunID {
		t.Error("Runs share an ID")
	}
}

func TestReporterVerbose(t *testing.T) {
	path := xlsxtest.Save(t, xlsxtest.Orders())
	rep := NewReporter(slog.New(slog.NewTextHandler(io.Discard, nil)), "test", true)
	opts := Options{Table: "T1", Mappings: ordersRegistry(), Reporter: rep}

	res, err := Extract(path, opts, output.NewMemory(opts.Mappings.Fields()))
	if err != nil {
		t.Fatal(err)
	}

	var messages []string
	for _, ev := range res.Events {
		if ev.Severity != SeverityInfo {
			t.Errorf("Unexpected %s event %q", ev.Severity, ev.Message)
		}
		messages = append(messages, ev.Message)
	}
	joined := strings.Join(messages, "\n")
	for _, want := range []string{"workbook opened", "found column", "reading data row", "set field", "closing workbook"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Verbose events missing %q", want)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err      error
		expected ErrorKind
	}{
		{mapping.ErrFieldCount, KindConfiguration},
		{mapping.ErrUnsupportedType, KindConfiguration},
		{ErrNoDataSource, KindConfiguration},
		{parser.ErrInvalidReference, KindParse},
		{parser.ErrTableNotFound, KindTableNotFound},
		{&mapping.MissingColumnsError{Table: "T", Columns: []string{"X"}}, KindColumnNotFound},
		{&mapping.CoercionError{Value: "x", Type: models.DataTypeInt32}, KindTypeCoercion},
		{NewExtractionError(KindSink, errors.New("x")), KindSink},
		{errors.New("read failed"), KindIO},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.expected {
			t.Errorf("KindOf(%v) = %s, expected %s", tt.err, got, tt.expected)
		}
	}
}

// countingOpener serves wb and counts how often it is opened and closed.
type countingOpener struct {
	wb       parser.Workbook
	opened   int
	closed   int
	closeErr error
}

func (c *countingOpener) open() (parser.Workbook, func() error, error) {
	c.opened++
	return c.wb, func() error {
		c.closed++
		return c.closeErr
	}, nil
}

func TestExecuteReleasesWorkbook(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		source   string
		dataType models.DataType
		failAt   int
		kind     ErrorKind
	}{
		{"success", "Notes", "Note", models.DataTypeString, 0, ""},
		{"table not found", "Missing", "Note", models.DataTypeString, 0, KindTableNotFound},
		{"column not found", "Notes", "Nope", models.DataTypeString, 0, KindColumnNotFound},
		{"type coercion", "Notes", "Code", models.DataTypeInt32, 0, KindTypeCoercion},
		{"sink", "Notes", "Note", models.DataTypeString, 1, KindSink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mapping.NewRegistry()
			r.Map(tt.source, "f", tt.dataType, true)
			sink := &failingSink{Memory: output.NewMemory(r.Fields()), failAt: tt.failAt}
			wb := &countingOpener{wb: notesWorkbook()}

			_, err := execute(Options{Table: tt.table, Mappings: r, Reporter: quietReporter()}, sink, wb.open)
			if tt.kind == "" && err != nil {
				t.Fatalf("execute failed: %v", err)
			}
			if tt.kind != "" && KindOf(err) != tt.kind {
				t.Fatalf("kind = %s, expected %s (%v)", KindOf(err), tt.kind, err)
			}
			if wb.opened != 1 || wb.closed != 1 {
				t.Errorf("opened %d, closed %d, expected 1 and 1", wb.opened, wb.closed)
			}
		})
	}
}

func TestExecuteConfigurationSkipsOpen(t *testing.T) {
	wb := &countingOpener{wb: notesWorkbook()}
	opts := ordersOptions()

	_, err := execute(opts, output.NewMemory(opts.Mappings.Fields()[:1]), wb.open)
	if KindOf(err) != KindConfiguration {
		t.Fatalf("kind = %s, expected configuration", KindOf(err))
	}
	if wb.opened != 0 || wb.closed != 0 {
		t.Errorf("opened %d, closed %d, expected neither", wb.opened, wb.closed)
	}
}

func TestExecuteCloseError(t *testing.T) {
	r := mapping.NewRegistry()
	r.Map("Note", "note", models.DataTypeString, true)
	wb := &countingOpener{wb: notesWorkbook(), closeErr: errors.New("handle lost")}

	res, err := execute(Options{Table: "Notes", Mappings: r, Reporter: quietReporter()}, output.NewMemory(r.Fields()), wb.open)
	if KindOf(err) != KindIO {
		t.Fatalf("kind = %s, expected io (%v)", KindOf(err), err)
	}
	if wb.closed != 1 {
		t.Errorf("closed %d, expected 1", wb.closed)
	}
	if res.Records != 1 {
		t.Errorf("Records = %d, expected 1", res.Records)
	}
}
